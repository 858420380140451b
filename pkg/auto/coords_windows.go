//go:build windows

package auto

import (
	"sync"
	"syscall"

	"github.com/go-vgo/robotgo"
)

// DPI Aware 进程中 robotgo.CaptureImg 总是返回物理像素，
// 而 GetScreenSize/Move 在不同版本下可能使用逻辑坐标，
// 所以通过对比两者的尺寸来确定输入坐标空间。

var (
	user32            = syscall.NewLazyDLL("user32.dll")
	gdi32             = syscall.NewLazyDLL("gdi32.dll")
	procGetDpiForWnd  = user32.NewProc("GetDpiForWindow")
	procGetForeground = user32.NewProc("GetForegroundWindow")
	procGetDesktop    = user32.NewProc("GetDesktopWindow")
	procGetDC         = user32.NewProc("GetDC")
	procReleaseDC     = user32.NewProc("ReleaseDC")
	procGetDeviceCaps = gdi32.NewProc("GetDeviceCaps")

	dpiOnce  sync.Once
	dpiScale float64
)

const logPixelsX = 88

// GetDPIScale 获取 Windows DPI 缩放比例 (1.0 = 100%)
func GetDPIScale() float64 {
	dpiOnce.Do(func() {
		dpi := queryDPI()
		if dpi <= 0 {
			dpi = 96
		}
		dpiScale = normalizeScale(float64(dpi) / 96.0)
	})
	return dpiScale
}

func queryDPI() int {
	if procGetDpiForWnd.Find() == nil {
		hwnd, _, _ := procGetForeground.Call()
		if hwnd == 0 {
			hwnd, _, _ = procGetDesktop.Call()
		}
		if hwnd != 0 {
			if d, _, _ := procGetDpiForWnd.Call(hwnd); d > 0 {
				return int(d)
			}
		}
	}
	if procGetDC.Find() == nil && procGetDeviceCaps.Find() == nil {
		dc, _, _ := procGetDC.Call(0)
		if dc != 0 {
			defer procReleaseDC.Call(0, dc)
			d, _, _ := procGetDeviceCaps.Call(dc, uintptr(logPixelsX))
			return int(d)
		}
	}
	return 0
}

// detectScale 对比截图尺寸与 robotgo 报告的屏幕尺寸，截图失败时退回 DPI 缩放
func detectScale() CoordScale {
	w, h := robotgo.GetScreenSize()
	img, err := robotgo.CaptureImg()
	if err != nil || img == nil {
		s := GetDPIScale()
		return CoordScale{X: s, Y: s}
	}
	b := img.Bounds()
	return DetectScale(b.Dx(), b.Dy(), w, h)
}

// GetPhysicalScreenSize 获取物理屏幕尺寸，与截图分辨率一致
func GetPhysicalScreenSize() (width, height int) {
	w, h := robotgo.GetScreenSize()
	s := CurrentScale()
	return ScaleInt(w, s.X), ScaleInt(h, s.Y)
}
