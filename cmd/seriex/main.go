package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/John-Robertt/seriex/internal/app/run"
	"github.com/John-Robertt/seriex/internal/config"
	"github.com/John-Robertt/seriex/internal/domain"
	"github.com/John-Robertt/seriex/internal/infra/planstore"
	"github.com/John-Robertt/seriex/internal/report"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	var code int
	switch args[0] {
	case "plan":
		code = planCmd(args[1:])
	case "apply":
		code = applyCmd(args[1:])
	case "run":
		code = runCmd(args[1:])
	case "rename":
		code = renameCmd(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		code = 2
	}
	if code != 0 {
		os.Exit(code)
	}
}

// 每个命令接受的参数集合；集合之外的参数一律按未知参数拒绝。
var (
	planFlags   = flagSet("--config", "--known-dir", "--no-prefix", "--allow-single", "--out", "--verbose")
	applyFlags  = flagSet("--config", "--plan", "--report", "--verbose")
	runFlags    = flagSet("--config", "--known-dir", "--no-prefix", "--allow-single", "--report", "--verbose")
	renameFlags = flagSet("--config", "--verbose")
)

func planCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printPlanUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, planFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printPlanUsage()
		return 2
	}

	eff, err := loadEffective(ca)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置错误：%v\n", err)
		return 1
	}

	log := buildLogger(ca.Verbose)
	defer func() { _ = log.Sync() }()

	env := run.NewEnv(eff, log)
	if len(ca.KnownDirs) > 0 {
		env.Engine.Registry().Override(ca.KnownDirs)
	}

	progressW, interactive := pickProgressWriter()
	if interactive {
		env.Obs = newProgressUI(progressW)
	}

	plan, unplanned, err := env.Prepare(eff.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "计划失败：%v\n", err)
		return 1
	}

	if ca.Out != "" {
		if err := planstore.Save(ca.Out, plan); err != nil {
			fmt.Fprintf(os.Stderr, "写入计划文件失败：%v\n", err)
			emitPlan(plan, unplanned, "")
			return 1
		}
	}
	return emitPlan(plan, unplanned, ca.Out)
}

func applyCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printApplyUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, applyFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printApplyUsage()
		return 2
	}
	if strings.TrimSpace(ca.PlanFile) == "" {
		fmt.Fprintf(os.Stderr, "参数错误：apply 需要 --plan 指定计划文件\n\n")
		printApplyUsage()
		return 2
	}

	plan, ok, err := planstore.Load(ca.PlanFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取计划失败：%v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "计划文件不存在：%q\n", ca.PlanFile)
		return 1
	}
	// 未给 path 时沿用计划里的 root，配置也从那里发现。
	if ca.Path == "" {
		ca.Path = plan.Root
	}

	eff, err := loadEffective(ca)
	if err != nil {
		emitReport(reportForConfigError(err))
		return 1
	}

	log := buildLogger(ca.Verbose)
	defer func() { _ = log.Sync() }()

	env := run.NewEnv(eff, log)

	progressW, interactive := pickProgressWriter()
	if interactive {
		env.Obs = newProgressUI(progressW)
	}

	rep := env.Apply(plan)

	if ca.Report != "" {
		if err := writeReportFile(ca.Report, rep); err != nil {
			fmt.Fprintf(os.Stderr, "写入报告失败：%v\n", err)
			emitReport(rep)
			return 1
		}
	}

	emitReport(rep)
	if interactive && ca.Report != "" {
		fmt.Fprintf(progressW, "report: %s\n", ca.Report)
	}
	if rep.Summary.Failed == 0 {
		return 0
	}
	return 1
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, runFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	eff, err := loadEffective(ca)
	if err != nil {
		emitReport(reportForConfigError(err))
		return 1
	}

	log := buildLogger(ca.Verbose)
	defer func() { _ = log.Sync() }()

	env := run.NewEnv(eff, log)
	if len(ca.KnownDirs) > 0 {
		env.Engine.Registry().Override(ca.KnownDirs)
	}

	progressW, interactive := pickProgressWriter()
	if interactive {
		env.Obs = newProgressUI(progressW)
	}

	rep, err := env.Process(eff.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "运行失败：%v\n", err)
		return 1
	}

	if ca.Report != "" {
		if err := writeReportFile(ca.Report, rep); err != nil {
			fmt.Fprintf(os.Stderr, "写入报告失败：%v\n", err)
			emitReport(rep)
			return 1
		}
	}

	emitReport(rep)
	if interactive && ca.Report != "" {
		fmt.Fprintf(progressW, "report: %s\n", ca.Report)
	}
	if rep.Summary.Failed == 0 {
		return 0
	}
	return 1
}

func renameCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRenameUsage()
			return 0
		}
	}

	ca, err := parseArgs(args, renameFlags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRenameUsage()
		return 2
	}

	eff, err := loadEffective(ca)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置错误：%v\n", err)
		return 1
	}
	if info, err := os.Stat(eff.Path); err != nil || !info.IsDir() {
		fmt.Fprintf(os.Stderr, "无效目录：%q\n", eff.Path)
		return 1
	}

	log := buildLogger(ca.Verbose)
	defer func() { _ = log.Sync() }()

	env := run.NewEnv(eff, log)

	started := time.Now().UTC()
	renamed := env.RenameLegacyFolders(eff.Path)
	rep := domain.RunReport{
		Root:           eff.Path,
		StartedAt:      started,
		FinishedAt:     time.Now().UTC(),
		RenamedFolders: renamed,
	}
	rep.Finalize()

	emitReport(rep)
	return 0
}

// cliArgs 是四个命令共用的参数集合；具体命令通过 flagSet 约束可用子集。
type cliArgs struct {
	Path   string
	Config string

	PlanFile string
	Out      string
	Report   string

	NoPrefix bool

	AllowSingle    bool
	AllowSingleSet bool

	KnownDirs []string

	Verbose bool
}

func parseArgs(args []string, allowed map[string]bool) (cliArgs, error) {
	ca := cliArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]

		name := a
		if j := strings.IndexByte(a, '='); j >= 0 {
			name = a[:j]
		}
		if strings.HasPrefix(a, "-") && !allowed[name] {
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		}

		switch {
		case a == "--config" || strings.HasPrefix(a, "--config="):
			v, err := takeValue(args, &i, "--config")
			if err != nil {
				return cliArgs{}, err
			}
			ca.Config = v
		case a == "--plan" || strings.HasPrefix(a, "--plan="):
			v, err := takeValue(args, &i, "--plan")
			if err != nil {
				return cliArgs{}, err
			}
			ca.PlanFile = v
		case a == "--out" || strings.HasPrefix(a, "--out="):
			v, err := takeValue(args, &i, "--out")
			if err != nil {
				return cliArgs{}, err
			}
			ca.Out = v
		case a == "--report" || strings.HasPrefix(a, "--report="):
			v, err := takeValue(args, &i, "--report")
			if err != nil {
				return cliArgs{}, err
			}
			ca.Report = v
		case a == "--known-dir" || strings.HasPrefix(a, "--known-dir="):
			v, err := takeValue(args, &i, "--known-dir")
			if err != nil {
				return cliArgs{}, err
			}
			ca.KnownDirs = append(ca.KnownDirs, v)
		case a == "--no-prefix":
			ca.NoPrefix = true
		case a == "--allow-single":
			ca.AllowSingle = true
			ca.AllowSingleSet = true
		case strings.HasPrefix(a, "--allow-single="):
			switch v := strings.TrimPrefix(a, "--allow-single="); v {
			case "true":
				ca.AllowSingle = true
			case "false":
				ca.AllowSingle = false
			default:
				return cliArgs{}, fmt.Errorf("--allow-single 只能是 true 或 false，实际是 %q", v)
			}
			ca.AllowSingleSet = true
		case a == "--verbose":
			ca.Verbose = true
		case strings.HasPrefix(a, "-"):
			return cliArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ca.Path != "" {
				return cliArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ca.Path, a)
			}
			ca.Path = a
		}
	}

	return ca, nil
}

// takeValue 读取 "--flag value" 与 "--flag=value" 两种写法的值。
func takeValue(args []string, i *int, flag string) (string, error) {
	a := args[*i]
	if a == flag {
		if *i+1 >= len(args) {
			return "", fmt.Errorf("%s 需要一个值", flag)
		}
		*i++
		return args[*i], nil
	}
	v := strings.TrimPrefix(a, flag+"=")
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s 不能为空", flag)
	}
	return v, nil
}

func flagSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

// loadEffective 加载最终配置。配置文件缺失/损坏只降级警告（回退内置默认），
// 只有最终定不出工作目录时才按失败返回。
func loadEffective(ca cliArgs) (config.EffectiveConfig, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return config.EffectiveConfig{}, fmt.Errorf("读取当前目录失败：%w", err)
	}

	eff, cfgErr := config.LoadEffective(cwd, config.CLIArgs{
		Path:           ca.Path,
		ConfigFile:     ca.Config,
		AddPrefix:      !ca.NoPrefix,
		AddPrefixSet:   ca.NoPrefix,
		AllowSingle:    ca.AllowSingle,
		AllowSingleSet: ca.AllowSingleSet,
		KnownDirs:      ca.KnownDirs,
	})
	if cfgErr != nil {
		if eff.Path == "" {
			return eff, cfgErr
		}
		fmt.Fprintf(os.Stderr, "警告：%v（继续使用内置默认值）\n", cfgErr)
	}
	return eff, nil
}

// buildLogger 构造 CLI 日志器：console 编码，全部写到 stderr，
// 不触碰 stdout 的文档输出契约。--verbose 打开 Debug 级别。
func buildLogger(verbose bool) *zap.SugaredLogger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.Lock(os.Stderr), level)
	return zap.New(core).Sugar()
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  seriex <command> [path] [flags]

命令：
  plan    扫描并输出迁移计划（不移动任何文件）
  run     计划并立即执行（旧文件夹改名 + 分组 + 搬移）
  apply   执行之前保存的计划文件
  rename  仅规范化带系列标记的旧文件夹名

使用 "seriex <command> --help" 查看详细说明。
`)
}

func printPlanUsage() {
	fmt.Fprint(os.Stdout, `用法：
  seriex plan [path] [--config 文件] [--known-dir 目录]... [--no-prefix] [--allow-single[=true|false]] [--out 文件] [--verbose]

参数：
  --config        指定配置文件（默认查找 <path>/seriex.toml，无 path 时查找 <cwd>/seriex.toml）
  --known-dir     参考目录，覆盖配置中的 known_series_dirs（可重复）
  --no-prefix     创建的系列文件夹名不加前缀标记
  --allow-single  已知系列命中单个文件时也建文件夹；支持 --allow-single=false 覆盖配置
  --out           把计划另存为 YAML 文件，供 "seriex apply --plan" 使用
  --verbose       输出调试日志
  -h, --help      显示帮助

stdout 非终端时只输出一个计划 YAML 文档；摘要走 stderr。
`)
}

func printApplyUsage() {
	fmt.Fprint(os.Stdout, `用法：
  seriex apply [path] --plan 文件 [--config 文件] [--report 文件] [--verbose]

参数：
  --plan      要执行的计划文件（seriex plan --out 的产物；必填）
  --config    指定配置文件
  --report    把运行报告另存为 YAML 文件
  --verbose   输出调试日志
  -h, --help  显示帮助

未给 path 时沿用计划里记录的 root。
stdout 非终端时只输出一个报告 YAML 文档；摘要走 stderr。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  seriex run [path] [--config 文件] [--known-dir 目录]... [--no-prefix] [--allow-single[=true|false]] [--report 文件] [--verbose]

参数：
  --config        指定配置文件（默认查找 <path>/seriex.toml，无 path 时查找 <cwd>/seriex.toml）
  --known-dir     参考目录，覆盖配置中的 known_series_dirs（可重复）
  --no-prefix     创建的系列文件夹名不加前缀标记，同时跳过旧文件夹改名
  --allow-single  已知系列命中单个文件时也建文件夹；支持 --allow-single=false 覆盖配置
  --report        把运行报告另存为 YAML 文件
  --verbose       输出调试日志
  -h, --help      显示帮助

stdout 非终端时只输出一个报告 YAML 文档；进度与摘要走 stderr。
`)
}

func printRenameUsage() {
	fmt.Fprint(os.Stdout, `用法：
  seriex rename [path] [--config 文件] [--verbose]

把带系列标记的旧文件夹名规范化为当前规则算出的系列名（深层优先，
目标已存在时跳过）。不扫描、不分组、不移动文件。

参数：
  --config    指定配置文件
  --verbose   输出调试日志
  -h, --help  显示帮助
`)
}

// emitPlan 按 stdout 是否为终端分流：终端给人看的摘要，否则恰好一个
// 计划 YAML 文档（摘要走 stderr）。
func emitPlan(plan domain.RelocationPlan, unplanned []string, outFile string) int {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "计划：dirs=%d moves=%d unplanned=%d\n",
			len(plan.Dirs), plan.FileCount(), len(unplanned))
		for _, d := range plan.Dirs {
			fmt.Fprintf(os.Stdout, "%s\n", d.Dir)
			for _, f := range d.Folders {
				fmt.Fprintf(os.Stdout, "  %s/ (%d 个文件)\n", f.Folder, len(f.Files))
			}
		}
		if outFile != "" {
			fmt.Fprintf(os.Stdout, "plan: %s\n", outFile)
		}
		return 0
	}

	b, err := report.EncodePlan(plan)
	if err != nil {
		fmt.Fprintf(os.Stderr, "编码计划失败：%v\n", err)
		return 1
	}
	_, _ = os.Stdout.Write(b)
	fmt.Fprintf(os.Stderr, "计划：dirs=%d moves=%d unplanned=%d\n",
		len(plan.Dirs), plan.FileCount(), len(unplanned))
	return 0
}

func emitReport(rep domain.RunReport) {
	if isTTY(os.Stdout) {
		fmt.Fprintf(os.Stdout, "完成：planned=%d moved=%d failed=%d unclassified=%d renamed=%d\n",
			rep.Summary.Planned, rep.Summary.Moved, rep.Summary.Failed,
			rep.Summary.Unclassified, rep.Summary.RenamedFolders,
		)
		if rep.Summary.Failed > 0 {
			for _, d := range rep.Dirs {
				for _, f := range d.Failures {
					src := f.Src
					if src == "" {
						// 合成条目（例如配置错误）：用目录做定位锚点。
						src = d.Dir
					}
					fmt.Fprintf(os.Stderr, "%s %s: %s\n", src, f.ErrorCode, f.ErrorMsg)
				}
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个报告文档（摘要走 stderr）。
	b, err := report.EncodeReport(rep)
	if err != nil {
		fmt.Fprintf(os.Stderr, "编码报告失败：%v\n", err)
		return
	}
	_, _ = os.Stdout.Write(b)
	fmt.Fprintf(os.Stderr, "完成：planned=%d moved=%d failed=%d unclassified=%d renamed=%d\n",
		rep.Summary.Planned, rep.Summary.Moved, rep.Summary.Failed,
		rep.Summary.Unclassified, rep.Summary.RenamedFolders,
	)
}

// reportForConfigError 把致命的配置错误合成为一份失败报告，保证 run/apply
// 即使没跑起来，stdout 契约也成立。
func reportForConfigError(err error) domain.RunReport {
	cwd, _ := os.Getwd()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeIOFailed
	}

	now := time.Now().UTC()
	rr := domain.RunReport{
		Root:       cwd,
		StartedAt:  now,
		FinishedAt: now,
		Dirs: []domain.DirResult{{
			Dir:    cwd,
			Status: domain.DirStatusFailed,
			Failures: []domain.MoveFailure{{
				ErrorCode: code,
				ErrorMsg:  err.Error(),
			}},
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(path string, rep domain.RunReport) error {
	b, err := report.EncodeReport(rep)
	if err != nil {
		return err
	}
	return report.WriteDocument(path, b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout 的文档输出）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	// 某些环境（例如仅重定向 stderr）下，stdout 仍是 TTY：退化输出到 stdout。
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}
