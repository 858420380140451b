package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/zoeyai/zoeymatch/pkg/auto/screen"
	"github.com/zoeyai/zoeymatch/pkg/config"
	"github.com/zoeyai/zoeymatch/pkg/vision"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
	"github.com/zoeyai/zoeymatch/pkg/vision/imgio"
)

func TestParseRegion(t *testing.T) {
	r, err := parseRegion("10, 20,30,40")
	if err != nil || r != cv.NewRegion(10, 20, 30, 40) {
		t.Errorf("parseRegion 错误: %v %v", r, err)
	}
	for _, s := range []string{"1,2,3", "a,b,c,d", "0,0,0,5", "0,0,5,-1"} {
		if _, err := parseRegion(s); err == nil {
			t.Errorf("%q 应解析失败", s)
		}
	}
}

func TestParseFlags(t *testing.T) {
	f, err := parseFlags([]string{"-template", "a.png", "-similarity", "0.9", "-region", "1,2,3,4", "-all"}, io.Discard)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if f.template != "a.png" || !f.all || f.region == nil || *f.region != cv.NewRegion(1, 2, 3, 4) {
		t.Errorf("参数错误: %+v", f)
	}
	if !f.set["similarity"] || f.set["overlap"] {
		t.Errorf("显式参数记录错误: %v", f.set)
	}

	if _, err := parseFlags([]string{"-threshold", "300"}, io.Discard); err == nil {
		t.Error("越界的 -threshold 应报错")
	}
	if _, err := parseFlags([]string{"-region", "bad"}, io.Discard); err == nil {
		t.Error("错误的 -region 应报错")
	}
	if _, err := parseFlags([]string{"-type", "hello"}, io.Discard); err == nil {
		t.Error("-type 缺少 -click 应报错")
	}
	if _, err := parseFlags([]string{"-click", "-hotkey", "foo+a"}, io.Discard); err == nil {
		t.Error("未知修饰键应报错")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := config.DefaultMatchConfig()
	cfg.Similarity = 0.8
	cfg.OverlapThreshold = 0.5

	f, _ := parseFlags([]string{"-overlap", "0.1", "-log-level", "debug"}, io.Discard)
	applyFlags(cfg, f)

	if cfg.Similarity != 0.8 {
		t.Errorf("未给出的参数不应覆盖配置: %f", cfg.Similarity)
	}
	if cfg.OverlapThreshold != 0.1 || cfg.LogLevel != "debug" {
		t.Errorf("命令行参数应覆盖配置: %+v", cfg)
	}

	f, _ = parseFlags([]string{"-similarity", "1.5"}, io.Discard)
	applyFlags(cfg, f)
	if cfg.Similarity != 1 {
		t.Errorf("越界值应被修正: %f", cfg.Similarity)
	}
}

// writeFixture 写出随机屏幕及其中一块作为模板
func writeFixture(t *testing.T) (screenPath, templatePath string) {
	t.Helper()
	rng := rand.New(rand.NewSource(7))
	img := image.NewRGBA(image.Rect(0, 0, 90, 70))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	scr := cv.FromImage(img)
	tmpl, err := scr.Crop(cv.NewRegion(25, 15, 18, 14))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	screenPath = filepath.Join(dir, "screen.png")
	templatePath = filepath.Join(dir, "button.png")
	if err := imgio.WriteFile(screenPath, scr); err != nil {
		t.Fatal(err)
	}
	if err := imgio.WriteFile(templatePath, tmpl); err != nil {
		t.Fatal(err)
	}
	return screenPath, templatePath
}

func TestRunMatchFromFiles(t *testing.T) {
	screenPath, templatePath := writeFixture(t)
	highlightPath := filepath.Join(t.TempDir(), "out.png")

	f, err := parseFlags([]string{
		"-template", templatePath,
		"-screen", screenPath,
		"-similarity", "0.9",
		"-highlight", highlightPath,
		"-log-level", "off",
	}, io.Discard)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := run(context.Background(), f, &out); err != nil {
		t.Fatalf("run 失败: %v", err)
	}

	var res vision.MatchResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("输出不是合法 JSON: %v\n%s", err, out.String())
	}
	if res.Result != (cv.Point{X: 34, Y: 22}) {
		t.Errorf("动作点错误: %+v", res.Result)
	}
	if res.Rectangle.TopLeft != (cv.Point{X: 25, Y: 15}) {
		t.Errorf("矩形错误: %+v", res.Rectangle)
	}
	if res.Confidence < 0.99 {
		t.Errorf("置信度过低: %f", res.Confidence)
	}

	if _, err := imgio.ReadFile(highlightPath); err != nil {
		t.Errorf("标注图像未写出: %v", err)
	}
}

// writePeriodicFixture 写出一块水平周期为 6 的噪声，模板在 x=20 和 x=26 处完全匹配且互相重叠
func writePeriodicFixture(t *testing.T) (screenPath, templatePath string) {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	img := image.NewRGBA(image.Rect(0, 0, 90, 70))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	for y := 20; y < 34; y++ {
		for x := 26; x < 44; x++ {
			copy(img.Pix[img.PixOffset(x, y):img.PixOffset(x, y)+4], img.Pix[img.PixOffset(x-6, y):img.PixOffset(x-6, y)+4])
		}
	}
	scr := cv.FromImage(img)
	tmpl, err := scr.Crop(cv.NewRegion(20, 20, 18, 14))
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	screenPath = filepath.Join(dir, "screen.png")
	templatePath = filepath.Join(dir, "tile.png")
	if err := imgio.WriteFile(screenPath, scr); err != nil {
		t.Fatal(err)
	}
	if err := imgio.WriteFile(templatePath, tmpl); err != nil {
		t.Fatal(err)
	}
	return screenPath, templatePath
}

func TestRunMatchOverlapFlag(t *testing.T) {
	screenPath, templatePath := writePeriodicFixture(t)

	findAll := func(overlap string) []vision.MatchResult {
		t.Helper()
		f, err := parseFlags([]string{
			"-template", templatePath,
			"-screen", screenPath,
			"-similarity", "0.9",
			"-overlap", overlap,
			"-workers", "3",
			"-all",
			"-log-level", "off",
		}, io.Discard)
		if err != nil {
			t.Fatal(err)
		}
		var out bytes.Buffer
		if err := run(context.Background(), f, &out); err != nil {
			t.Fatalf("-overlap %s: run 失败: %v", overlap, err)
		}
		var res []vision.MatchResult
		if err := json.Unmarshal(out.Bytes(), &res); err != nil {
			t.Fatalf("输出不是合法 JSON: %v\n%s", err, out.String())
		}
		return res
	}

	if res := findAll("0.3"); len(res) != 1 {
		t.Errorf("-overlap 0.3 应抑制重叠匹配, 实际 %d 个", len(res))
	}
	res := findAll("1")
	if len(res) != 2 {
		t.Fatalf("-overlap 1 应保留两个重叠匹配, 实际 %d 个", len(res))
	}
	got := []cv.Point{res[0].Rectangle.TopLeft, res[1].Rectangle.TopLeft}
	if got[0] != (cv.Point{X: 20, Y: 20}) || got[1] != (cv.Point{X: 26, Y: 20}) {
		t.Errorf("匹配位置错误: %v", got)
	}
}

func TestFrameRecorderKeepsMatchedFrame(t *testing.T) {
	first := cv.FromImage(image.NewRGBA(image.Rect(0, 0, 40, 30)))
	second := cv.FromImage(image.NewRGBA(image.Rect(0, 0, 40, 30)))
	frames := &frameRecorder{inner: screen.NewStaticCapturer(first, second)}

	if frames.Last() != nil {
		t.Error("截图前 Last 应为 nil")
	}
	buf, err := frames.Capture(&cv.Region{X: 5, Y: 5, Width: 10, Height: 8})
	if err != nil {
		t.Fatalf("截图失败: %v", err)
	}
	if buf.Width() != 10 || buf.Height() != 8 {
		t.Errorf("区域截图尺寸错误: %dx%d", buf.Width(), buf.Height())
	}
	if frames.Last() != first {
		t.Error("应记录匹配时截取的整屏")
	}

	if _, err := frames.Capture(nil); err != nil {
		t.Fatal(err)
	}
	if frames.Last() != second {
		t.Error("应记录最近一次截图")
	}
}

func TestRunMatchNotFound(t *testing.T) {
	screenPath, templatePath := writeFixture(t)

	f, _ := parseFlags([]string{
		"-template", templatePath,
		"-screen", screenPath,
		"-region", "50,40,40,30",
		"-similarity", "0.9",
		"-log-level", "off",
	}, io.Discard)

	var out bytes.Buffer
	err := run(context.Background(), f, &out)
	if !errors.Is(err, errNotFound) {
		t.Errorf("期望 errNotFound, 实际 %v", err)
	}
	if got := bytes.TrimSpace(out.Bytes()); string(got) != "null" {
		t.Errorf("未找到时应输出 null, 实际 %s", got)
	}
}

func TestRunDiff(t *testing.T) {
	screenPath, templatePath := writeFixture(t)

	f, _ := parseFlags([]string{"-screen", screenPath, "-diff", screenPath, "-log-level", "off"}, io.Discard)
	var out bytes.Buffer
	if err := run(context.Background(), f, &out); err != nil {
		t.Fatalf("run 失败: %v", err)
	}
	var res map[string]float64
	if err := json.Unmarshal(out.Bytes(), &res); err != nil || res["changed"] != 0 {
		t.Errorf("相同图像变化应为 0: %v %s", err, out.String())
	}

	f, _ = parseFlags([]string{"-screen", screenPath, "-diff", templatePath, "-log-level", "off"}, io.Discard)
	var dimErr *cv.DimensionError
	if err := run(context.Background(), f, io.Discard); !errors.As(err, &dimErr) {
		t.Errorf("尺寸不同应返回 DimensionError, 实际 %v", err)
	}

	f, _ = parseFlags([]string{"-diff", screenPath, "-log-level", "off"}, io.Discard)
	if err := run(context.Background(), f, io.Discard); err == nil {
		t.Error("缺少 -screen 应报错")
	}
}

func TestRunRejectsClickOnFile(t *testing.T) {
	screenPath, templatePath := writeFixture(t)
	f, _ := parseFlags([]string{"-template", templatePath, "-screen", screenPath, "-click", "-log-level", "off"}, io.Discard)
	if err := run(context.Background(), f, io.Discard); err == nil {
		t.Error("-click 与 -screen 同时使用应报错")
	}
}

func TestRunObserve(t *testing.T) {
	screenPath, templatePath := writeFixture(t)
	f, _ := parseFlags([]string{
		"-template", templatePath,
		"-screen", screenPath,
		"-similarity", "0.9",
		"-observe", "50ms",
		"-log-level", "off",
	}, io.Discard)

	var out bytes.Buffer
	if err := run(context.Background(), f, &out); err != nil {
		t.Fatalf("run 失败: %v", err)
	}

	dec := json.NewDecoder(&out)
	var events []event
	for dec.More() {
		var e event
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("事件不是合法 JSON: %v", err)
		}
		events = append(events, e)
	}
	if len(events) != 1 || events[0].Event != "appear" || events[0].Match == nil {
		t.Fatalf("应只输出一次 appear 事件: %+v", events)
	}
	if events[0].Match.Result != (cv.Point{X: 34, Y: 22}) {
		t.Errorf("出现位置错误: %+v", events[0].Match.Result)
	}
}
