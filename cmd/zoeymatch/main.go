package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/zoeyai/zoeymatch/internal/logger"
	"github.com/zoeyai/zoeymatch/pkg/auto"
	"github.com/zoeyai/zoeymatch/pkg/auto/image"
	"github.com/zoeyai/zoeymatch/pkg/auto/input"
	"github.com/zoeyai/zoeymatch/pkg/auto/observer"
	"github.com/zoeyai/zoeymatch/pkg/auto/screen"
	"github.com/zoeyai/zoeymatch/pkg/config"
	"github.com/zoeyai/zoeymatch/pkg/vision"
	"github.com/zoeyai/zoeymatch/pkg/vision/cv"
	"github.com/zoeyai/zoeymatch/pkg/vision/highlight"
	"github.com/zoeyai/zoeymatch/pkg/vision/imgio"
	"github.com/zoeyai/zoeymatch/pkg/vision/ocr"
)

// 版本信息 (可通过 ldflags 注入)
var (
	Version   = vision.Version
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// errNotFound 未找到模板，退出码 1
var errNotFound = errors.New("未找到模板")

// cliFlags 命令行参数
type cliFlags struct {
	template   string
	screen     string
	all        bool
	similarity float64
	overlap    float64
	workers    int
	method     string
	region     *cv.Region
	wait       time.Duration
	observe    time.Duration
	diff       string
	threshold  int
	highlight  string
	click      bool
	grid       string
	typeText   string
	hotkey     string
	ocr        bool
	save       bool
	logLevel   string
	logFile    string
	version    bool
	help       bool

	// set 命令行中显式给出的参数名
	set map[string]bool
}

func main() {
	f, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(2)
	}

	if f.version {
		printVersion()
		return
	}
	if f.help {
		printHelp(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f, os.Stdout); err != nil {
		if errors.Is(err, errNotFound) {
			os.Exit(1)
		}
		logger.Error("%v", err)
		os.Exit(2)
	}
}

// parseFlags 解析命令行参数
func parseFlags(args []string, output io.Writer) (*cliFlags, error) {
	f := &cliFlags{set: map[string]bool{}}
	fs := flag.NewFlagSet("zoeymatch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() { printHelp(output) }

	var region string
	fs.StringVar(&f.template, "template", "", "模板图像路径或 data URL")
	fs.StringVar(&f.screen, "screen", "", "屏幕截图文件，省略时截取当前屏幕")
	fs.BoolVar(&f.all, "all", false, "输出全部匹配")
	fs.Float64Var(&f.similarity, "similarity", config.DefaultSimilarity, "相似度阈值 (0-1)")
	fs.Float64Var(&f.overlap, "overlap", config.DefaultOverlapThreshold, "NMS 重叠阈值 (0-1)")
	fs.IntVar(&f.workers, "workers", 0, "并发数，0 为自动")
	fs.StringVar(&f.method, "method", string(vision.MatchMethodNative), "匹配后端: native/opencv/multiscale")
	fs.StringVar(&region, "region", "", "搜索区域 x,y,w,h")
	fs.DurationVar(&f.wait, "wait", 0, "等待模板出现的最长时间，0 只查找一次")
	fs.DurationVar(&f.observe, "observe", 0, "观察模板的出现和消失，持续该时间")
	fs.StringVar(&f.diff, "diff", "", "与 -screen 比较的图像，输出变化比例")
	fs.IntVar(&f.threshold, "threshold", config.DefaultChangeThreshold, "变化检测单通道阈值 (0-255)")
	fs.StringVar(&f.highlight, "highlight", "", "把匹配结果标注后保存到该文件")
	fs.BoolVar(&f.click, "click", false, "点击第一个匹配")
	fs.StringVar(&f.grid, "grid", "", "点击匹配区域内的网格 rows.cols.row.col")
	fs.StringVar(&f.typeText, "type", "", "点击后输入的文字")
	fs.StringVar(&f.hotkey, "hotkey", "", "点击后按下的组合键 (例: ctrl+a)")
	fs.BoolVar(&f.ocr, "ocr", false, "识别屏幕中的文字")
	fs.BoolVar(&f.save, "save", false, "保存配置到本地")
	fs.StringVar(&f.logLevel, "log-level", config.DefaultLogLevel, "日志级别: debug/info/warn/error/off")
	fs.StringVar(&f.logFile, "log-file", "", "额外写入的日志文件")
	fs.BoolVar(&f.version, "version", false, "显示版本信息")
	fs.BoolVar(&f.help, "help", false, "显示帮助信息")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })

	if region != "" {
		r, err := parseRegion(region)
		if err != nil {
			return nil, err
		}
		f.region = &r
	}
	if (f.typeText != "" || f.hotkey != "") && !f.click {
		return nil, errors.New("-type 和 -hotkey 需要同时指定 -click")
	}
	if f.hotkey != "" {
		if _, err := input.ParseHotKey(f.hotkey); err != nil {
			return nil, err
		}
	}
	if f.threshold < 0 || f.threshold > 255 {
		return nil, fmt.Errorf("-threshold 超出范围: %d", f.threshold)
	}
	return f, nil
}

// parseRegion 解析 "x,y,w,h"
func parseRegion(s string) (cv.Region, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return cv.Region{}, fmt.Errorf("区域格式错误，应为 x,y,w,h: %q", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return cv.Region{}, fmt.Errorf("区域格式错误: %q: %w", s, err)
		}
		v[i] = n
	}
	if v[2] <= 0 || v[3] <= 0 {
		return cv.Region{}, fmt.Errorf("区域宽高必须为正数: %q", s)
	}
	return cv.NewRegion(v[0], v[1], v[2], v[3]), nil
}

// applyFlags 命令行参数优先级高于配置文件
func applyFlags(cfg *config.MatchConfig, f *cliFlags) {
	if f.set["similarity"] {
		cfg.Similarity = f.similarity
	}
	if f.set["overlap"] {
		cfg.OverlapThreshold = f.overlap
	}
	if f.set["workers"] {
		cfg.Workers = f.workers
	}
	if f.set["threshold"] {
		cfg.ChangeThreshold = f.threshold
	}
	if f.set["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	for _, name := range cfg.Validate() {
		logger.Warn("配置项 %s 越界，已修正", name)
	}
}

func run(ctx context.Context, f *cliFlags, out io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		logger.Warn("加载配置失败: %v", err)
	}
	applyFlags(cfg, f)

	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
	if f.logFile != "" {
		if err := logger.Default().SetFile(f.logFile); err != nil {
			logger.Warn("打开日志文件失败: %v", err)
		}
		defer logger.Default().Close()
	}
	vision.ApplyConfig(cfg)

	if f.save {
		if err := config.Save(cfg); err != nil {
			logger.Warn("保存配置失败: %v", err)
		} else {
			logger.Info("配置已保存到 %s", config.GetDefaultManager().GetConfigFile())
		}
	}

	switch {
	case f.diff != "":
		return runDiff(f, cfg, out)
	case f.ocr:
		return runOCR(f, out)
	case f.observe > 0 && f.template != "":
		return runObserve(ctx, f, cfg, out)
	case f.template != "":
		return runMatch(ctx, f, cfg, out)
	case f.save:
		return nil
	default:
		printHelp(out)
		return errors.New("缺少 -template、-diff 或 -ocr 参数")
	}
}

// runDiff 输出 -screen 与 -diff 之间的变化比例
func runDiff(f *cliFlags, cfg *config.MatchConfig, out io.Writer) error {
	if f.screen == "" {
		return errors.New("-diff 需要同时指定 -screen")
	}
	fraction, err := vision.Diff(f.screen, f.diff, uint8(cfg.ChangeThreshold))
	if err != nil {
		return err
	}
	return writeJSON(out, map[string]float64{"changed": fraction})
}

// runOCR 输出屏幕（或 -region 内）的文字
func runOCR(f *cliFlags, out io.Writer) error {
	buf, err := loadScreen(f)
	if err != nil {
		return err
	}
	rec, err := ocr.NewRecognizer(ocr.DefaultConfig())
	if err != nil {
		return err
	}
	defer rec.Close()

	region := buf.Bounds()
	if f.region != nil {
		region = *f.region
	}
	results, err := rec.RecognizeRegion(buf, region)
	if err != nil {
		return err
	}
	return writeJSON(out, results)
}

// runMatch 查找模板，按参数输出、标注或点击
func runMatch(ctx context.Context, f *cliFlags, cfg *config.MatchConfig, out io.Writer) error {
	method, err := vision.ParseMatchMethod(f.method)
	if err != nil {
		return err
	}
	if f.click && f.screen != "" {
		return errors.New("-click 不能与 -screen 同时使用")
	}

	p, err := vision.NewPattern(f.template, vision.WithSimilarity(cfg.Similarity))
	if err != nil {
		return err
	}

	var capturer screen.Capturer = screen.NewRobotCapturer()
	if f.screen != "" {
		buf, err := imgio.ReadFile(f.screen)
		if err != nil {
			return err
		}
		capturer = screen.NewStaticCapturer(buf)
	}
	frames := &frameRecorder{inner: capturer}
	finder := image.NewFinder(frames,
		image.WithMatcher(newMatcher(cfg)),
		image.WithOptions(auto.OptionsFromConfig(cfg)),
	)

	var opts []auto.Option
	if f.region != nil {
		opts = append(opts, auto.WithRegion(f.region.X, f.region.Y, f.region.Width, f.region.Height))
	}

	startTime := time.Now()
	var matches []cv.Match
	if method == vision.MatchMethodNative {
		matches, err = findNative(ctx, finder, p, f, opts)
	} else {
		matches, err = findWith(finder, p, f, method)
	}
	if err != nil {
		return err
	}
	elapsed := float64(time.Since(startTime).Microseconds()) / 1000

	results := make([]*vision.MatchResult, len(matches))
	for i, m := range matches {
		results[i] = vision.NewMatchResult(m, elapsed)
	}
	if f.all {
		err = writeJSON(out, results)
	} else if len(results) > 0 {
		err = writeJSON(out, results[0])
	} else {
		err = writeJSON(out, nil)
	}
	if err != nil {
		return err
	}

	if f.highlight != "" {
		scr := frames.Last()
		if scr == nil {
			return errors.New("没有可标注的截图")
		}
		if err := highlight.Save(f.highlight, scr, p.Name(), matches, highlight.DefaultStyle()); err != nil {
			return err
		}
		logger.Info("标注结果已保存到 %s", f.highlight)
	}

	if len(matches) == 0 {
		return errNotFound
	}

	if f.click {
		var clickOpts []auto.Option
		if f.grid != "" {
			clickOpts = append(clickOpts, auto.WithGrid(f.grid))
		}
		pt, err := input.ClickMatch(matches[0], clickOpts...)
		if err != nil {
			return err
		}
		logger.Info("已点击 (%d, %d)", pt.X, pt.Y)

		if f.hotkey != "" {
			keys, _ := input.ParseHotKey(f.hotkey)
			input.HotKey(keys...)
		}
		if f.typeText != "" {
			input.TypeText(f.typeText)
		}
	}
	return nil
}

// event 观察事件，每行输出一个 JSON
type event struct {
	Event  string              `json:"event"`
	Time   string              `json:"time"`
	Match  *vision.MatchResult `json:"match,omitempty"`
	Change float64             `json:"change,omitempty"`
}

// runObserve 观察屏幕，输出模板的出现、消失和屏幕变化
func runObserve(ctx context.Context, f *cliFlags, cfg *config.MatchConfig, out io.Writer) error {
	p, err := vision.NewPattern(f.template, vision.WithSimilarity(cfg.Similarity))
	if err != nil {
		return err
	}

	opts := []observer.Option{
		observer.WithInterval(cfg.ObserveInterval()),
		observer.WithMatcher(newMatcher(cfg)),
		observer.WithChangeDetector(cv.NewChangeDetector(
			cv.WithChannelThreshold(uint8(cfg.ChangeThreshold)),
			cv.WithChangeWorkers(cfg.EffectiveWorkers()),
		)),
	}
	if f.region != nil {
		opts = append(opts, observer.WithRegion(*f.region))
	}
	var capturer screen.Capturer
	if f.screen != "" {
		buf, err := imgio.ReadFile(f.screen)
		if err != nil {
			return err
		}
		capturer = screen.NewStaticCapturer(buf)
	}
	obs := observer.New(capturer, opts...)

	enc := json.NewEncoder(out)
	emit := func(e event) {
		e.Time = time.Now().Format(time.RFC3339Nano)
		if err := enc.Encode(e); err != nil {
			logger.Warn("输出事件失败: %v", err)
		}
	}
	obs.OnAppear(p, func(m cv.Match) {
		emit(event{Event: "appear", Match: vision.NewMatchResult(m, 0)})
	})
	obs.OnVanish(p, func() {
		emit(event{Event: "vanish"})
	})
	obs.OnChange(0.01, func(fraction float64) {
		emit(event{Event: "change", Change: fraction})
	})
	return obs.Observe(ctx, f.observe)
}

// newMatcher 按配置创建匹配器
func newMatcher(cfg *config.MatchConfig) *cv.Matcher {
	return cv.NewMatcher(
		cv.WithOverlapThreshold(cfg.OverlapThreshold),
		cv.WithWorkers(cfg.EffectiveWorkers()),
	)
}

// frameRecorder 总是截取整屏并记录最近一帧，按区域请求时再裁剪
// 标注图像使用匹配时的那一帧
type frameRecorder struct {
	inner screen.Capturer

	mu   sync.Mutex
	last *cv.PixelBuffer
}

// Capture 截取整屏，region 不为 nil 时返回裁剪结果
func (r *frameRecorder) Capture(region *cv.Region) (*cv.PixelBuffer, error) {
	buf, err := r.inner.Capture(nil)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.last = buf
	r.mu.Unlock()

	if region == nil {
		return buf, nil
	}
	return buf.Crop(*region)
}

// Last 返回最近一次截取的整屏，尚未截图时为 nil
func (r *frameRecorder) Last() *cv.PixelBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// findNative 通过 Finder 轮询查找，结果为屏幕坐标
func findNative(ctx context.Context, finder *image.Finder, p *cv.Pattern, f *cliFlags, opts []auto.Option) ([]cv.Match, error) {
	m, err := finder.Exists(ctx, p, f.wait, opts...)
	if err != nil || m == nil {
		return nil, err
	}
	if !f.all {
		return []cv.Match{*m}, nil
	}
	return finder.FindAll(ctx, p, opts...)
}

// findWith 截图一次，用 OpenCV 后端查找
func findWith(finder *image.Finder, p *cv.Pattern, f *cliFlags, method vision.MatchMethod) ([]cv.Match, error) {
	scr, err := finder.Capture()
	if err != nil {
		return nil, err
	}
	vopts := []vision.Option{vision.WithMethod(method)}
	if f.region != nil {
		vopts = append(vopts, vision.WithRegion(*f.region))
	}
	results, err := vision.FindAll(scr, p, vopts...)
	if err != nil {
		return nil, err
	}
	if !f.all && len(results) > 1 {
		results = results[:1]
	}
	matches := make([]cv.Match, len(results))
	for i, r := range results {
		matches[i] = r.Match()
	}
	return matches, nil
}

// loadScreen 读取 -screen 文件，未指定时截取当前屏幕
func loadScreen(f *cliFlags) (*cv.PixelBuffer, error) {
	if f.screen != "" {
		return imgio.ReadFile(f.screen)
	}
	return screen.NewRobotCapturer().Capture(nil)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("ZoeyMatch v%s\n", Version)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

// printHelp 打印帮助信息
func printHelp(w io.Writer) {
	fmt.Fprintln(w, "ZoeyMatch - 屏幕模板匹配工具")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "用法:")
	fmt.Fprintln(w, "  zoeymatch [选项]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "选项:")
	fmt.Fprintln(w, "  -template string    模板图像路径或 data URL")
	fmt.Fprintln(w, "  -screen string      屏幕截图文件，省略时截取当前屏幕")
	fmt.Fprintln(w, "  -all                输出全部匹配")
	fmt.Fprintln(w, "  -similarity float   相似度阈值 (默认 0.7)")
	fmt.Fprintln(w, "  -overlap float      NMS 重叠阈值 (默认 0.3)")
	fmt.Fprintln(w, "  -workers int        并发数，0 为自动")
	fmt.Fprintln(w, "  -method string      匹配后端: native/opencv/multiscale")
	fmt.Fprintln(w, "  -region x,y,w,h     搜索区域")
	fmt.Fprintln(w, "  -wait duration      等待模板出现的最长时间 (例: 5s)")
	fmt.Fprintln(w, "  -observe duration   观察模板的出现和消失，持续该时间")
	fmt.Fprintln(w, "  -diff string        与 -screen 比较的图像，输出变化比例")
	fmt.Fprintln(w, "  -threshold int      变化检测单通道阈值 (默认 20)")
	fmt.Fprintln(w, "  -highlight string   把匹配结果标注后保存到该文件")
	fmt.Fprintln(w, "  -click              点击第一个匹配")
	fmt.Fprintln(w, "  -grid string        点击匹配区域内的网格 rows.cols.row.col")
	fmt.Fprintln(w, "  -type string        点击后输入的文字")
	fmt.Fprintln(w, "  -hotkey string      点击后按下的组合键 (例: ctrl+a)")
	fmt.Fprintln(w, "  -ocr                识别屏幕中的文字")
	fmt.Fprintln(w, "  -save               保存配置到本地")
	fmt.Fprintln(w, "  -log-level string   日志级别: debug/info/warn/error/off")
	fmt.Fprintln(w, "  -log-file string    额外写入的日志文件")
	fmt.Fprintln(w, "  -version            显示版本信息")
	fmt.Fprintln(w, "  -help               显示帮助信息")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "示例:")
	fmt.Fprintln(w, "  # 在截图中查找按钮")
	fmt.Fprintln(w, "  zoeymatch -template button.png -screen screen.png")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # 等待按钮出现并点击")
	fmt.Fprintln(w, "  zoeymatch -template button.png -wait 10s -click")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  # 比较两张截图")
	fmt.Fprintln(w, "  zoeymatch -screen before.png -diff after.png")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "配置文件位置: %s\n", config.GetDefaultManager().GetConfigFile())
}
