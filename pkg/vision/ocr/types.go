package ocr

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
)

// Result 一段识别出的文字
type Result struct {
	// Text 识别的文字内容
	Text string `json:"text"`
	// Confidence 识别置信度 (0-1)
	Confidence float64 `json:"confidence"`
	// Region 文字边界框（屏幕坐标）
	Region cv.Region `json:"region"`
}

// Center 返回文字中心位置
func (r Result) Center() cv.Point {
	return r.Region.Center()
}

// Config OCR 配置
type Config struct {
	// OnnxRuntimeLibPath ONNX Runtime 动态库路径
	OnnxRuntimeLibPath string `json:"onnx_runtime_lib_path"`
	// DetModelPath 检测模型路径
	DetModelPath string `json:"det_model_path"`
	// RecModelPath 识别模型路径
	RecModelPath string `json:"rec_model_path"`
	// DictPath 字典文件路径
	DictPath string `json:"dict_path"`
	// MinConfidence 低于该置信度的结果被丢弃
	MinConfidence float64 `json:"min_confidence"`
}

// DefaultConfig 默认配置，模型按可执行文件目录和当前目录依次查找
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: defaultOnnxRuntimePath(),
		DetModelPath:       defaultModelPath("det.onnx"),
		RecModelPath:       defaultModelPath("rec.onnx"),
		DictPath:           defaultModelPath("dict.txt"),
		MinConfidence:      0.5,
	}
}

// Available 检查配置中的文件是否齐全
func (c Config) Available() bool {
	return fileExists(c.OnnxRuntimeLibPath) &&
		fileExists(c.DetModelPath) &&
		fileExists(c.RecModelPath) &&
		fileExists(c.DictPath)
}

// IsAvailable 检查默认配置下 OCR 是否可用
func IsAvailable() bool {
	return DefaultConfig().Available()
}

// executableDir 获取可执行文件所在目录
func executableDir() string {
	execPath, err := os.Executable()
	if err != nil {
		return "."
	}
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return "."
	}
	return filepath.Dir(execPath)
}

// onnxLibName 当前平台的 ONNX Runtime 库文件名
func onnxLibName() string {
	switch runtime.GOOS {
	case "darwin":
		return "onnxruntime_" + runtime.GOARCH + ".dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "onnxruntime_" + runtime.GOARCH + ".so"
	}
}

func defaultOnnxRuntimePath() string {
	name := onnxLibName()
	return firstExisting(
		filepath.Join(executableDir(), "lib", name),
		filepath.Join(executableDir(), name),
		filepath.Join("models", "lib", name),
	)
}

func defaultModelPath(filename string) string {
	return firstExisting(
		filepath.Join(executableDir(), "models", "paddle_weights", filename),
		filepath.Join("models", "paddle_weights", filename),
	)
}

// firstExisting 返回第一个存在的路径，都不存在时返回最后一个
func firstExisting(paths ...string) string {
	for _, p := range paths {
		if fileExists(p) {
			return p
		}
	}
	return paths[len(paths)-1]
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
