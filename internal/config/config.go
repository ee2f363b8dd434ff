package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pelletier/go-toml/v2"

	"github.com/John-Robertt/seriex/internal/similarity"
)

const (
	// ErrCodeNotFound 表示无参运行但 cwd 下没有 seriex.toml。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeMissingPath 表示无参运行但配置文件缺少 path 字段。
	ErrCodeMissingPath = "config_missing_path"
)

// ConfigFileName 是按目录发现配置时的固定文件名。
const ConfigFileName = "seriex.toml"

const (
	// DefaultPrefix 是创建系列文件夹时使用的标记前缀。
	DefaultPrefix = "[#s]"
	// DefaultConcurrency 是目录级执行的并发默认值（与逐目录顺序语义一致）。
	DefaultConcurrency = 1
	// maxConcurrency 是并发上限；超出截断。
	maxConcurrency = 16
)

// 内置的候选扩展名集合（小写、含点、有序）。
var (
	DefaultFormats        = []string{".7z", ".cbr", ".cbz", ".mp4", ".nov", ".rar", ".zip"}
	DefaultArchiveFormats = []string{".7z", ".cbr", ".cbz", ".rar", ".zip"}
)

// DetectPrefixes 是识别已有系列文件夹/文件的内置前缀集合；
// 配置的创建前缀会在合并时并入。
var DetectPrefixes = []string{"[#s]", "#"}

// CLIArgs 记录 CLI 暴露的入口参数，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --allow-single=false 必须能覆盖配置里的 true。
type CLIArgs struct {
	Path       string
	ConfigFile string

	AddPrefix    bool
	AddPrefixSet bool

	AllowSingle    bool
	AllowSingleSet bool

	// KnownDirs 是参考目录的运行时覆盖（不参与合并，直接注入注册表）。
	KnownDirs []string
}

// FileConfig 对应 seriex.toml 的解析结构。
type FileConfig struct {
	Path           string   `toml:"path"`
	Formats        []string `toml:"formats"`
	ArchiveFormats []string `toml:"archive_formats"`

	Prefix    *string `toml:"prefix"`
	AddPrefix *bool   `toml:"add_prefix"`

	CheckIntegrity *bool `toml:"check_integrity"`

	// known_series_dir 是早期的单数写法，与 known_series_dirs 合并去重。
	KnownSeriesDir         string   `toml:"known_series_dir"`
	KnownSeriesDirs        []string `toml:"known_series_dirs"`
	KnownSeriesAllowSingle *bool    `toml:"known_series_allow_single"`

	Concurrency int `toml:"concurrency"`

	Similarity *similarity.Config `toml:"similarity"`
}

// EffectiveConfig 是合并规范化后的最终配置（实现层直接消费，
// 不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	Path string

	Formats        []string
	ArchiveFormats []string

	Prefix    string
	AddPrefix bool

	CheckIntegrity bool

	KnownSeriesDirs []string
	AllowSingle     bool

	Concurrency int

	// Prefixes 是识别前缀集合（含创建前缀），按 rune 长度降序。
	Prefixes []string

	Similarity similarity.Config
}

// CreationPrefix 返回创建文件夹时实际使用的前缀（禁用标记时为空串）。
func (c EffectiveConfig) CreationPrefix() string {
	if !c.AddPrefix {
		return ""
	}
	return c.Prefix
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeMissingPath:
		return fmt.Sprintf("%s：配置文件 %q 缺少必填字段 path", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，再与 CLI 参数合并为最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：读取该文件（必须存在）
// 2) CLI 提供 path：尝试读取 <path>/seriex.toml（可选）
// 3) 都没有：必须读取 <cwd>/seriex.toml，且其中必须包含 path
//
// 解析失败不会让调用方拿不到配置：返回值总是可用的（缺省回退到内置
// 默认值），错误只用来告知上层“配置被降级”。只有最终定不出工作目录
// 时（Path 为空），错误才是致命的。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, aerr := filepath.Abs(cwd)
	if aerr != nil {
		return merge("", cli, FileConfig{}), &Error{Code: ErrCodeInvalid, Path: cwd, Err: aerr}
	}

	var (
		fc      FileConfig
		cfgPath string
		cfgErr  *Error
	)

	switch {
	case strings.TrimSpace(cli.ConfigFile) != "":
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigFile)
		f, exists, err := readFileConfig(cfgPath)
		switch {
		case err != nil:
			cfgErr = &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		case !exists:
			cfgErr = &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		default:
			fc = f
		}

	case strings.TrimSpace(cli.Path) != "":
		// CLI 给了 path：配置文件可选，位置固定在 <path>/seriex.toml。
		cfgPath = filepath.Join(absCleanFrom(cwdAbs, cli.Path), ConfigFileName)
		f, _, err := readFileConfig(cfgPath)
		if err != nil {
			cfgErr = &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		} else {
			fc = f
		}

	default:
		cfgPath = filepath.Join(cwdAbs, ConfigFileName)
		f, exists, err := readFileConfig(cfgPath)
		switch {
		case err != nil:
			cfgErr = &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		case !exists:
			cfgErr = &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		default:
			fc = f
		}
	}

	// path：CLI > config。两边都没有且前面没报错时，报 missing_path。
	target := ""
	if strings.TrimSpace(cli.Path) != "" {
		target = absCleanFrom(cwdAbs, cli.Path)
	} else if strings.TrimSpace(fc.Path) != "" {
		target = absCleanFrom(cwdAbs, fc.Path)
	}
	if target == "" && cfgErr == nil {
		cfgErr = &Error{Code: ErrCodeMissingPath, Path: cfgPath}
	}

	eff := merge(target, cli, fc)
	if cfgErr != nil {
		return eff, cfgErr
	}
	return eff, nil
}

func merge(target string, cli CLIArgs, fc FileConfig) EffectiveConfig {
	formats := normalizeExts(fc.Formats)
	if len(formats) == 0 {
		formats = append([]string(nil), DefaultFormats...)
	}
	archives := normalizeExts(fc.ArchiveFormats)
	if len(archives) == 0 {
		archives = append([]string(nil), DefaultArchiveFormats...)
	}
	// archive_formats 必须是 formats 的子集。
	archives = intersect(archives, formats)

	prefix := DefaultPrefix
	if fc.Prefix != nil && strings.TrimSpace(*fc.Prefix) != "" {
		prefix = strings.TrimSpace(*fc.Prefix)
	}

	addPrefix := true
	if fc.AddPrefix != nil {
		addPrefix = *fc.AddPrefix
	}
	if cli.AddPrefixSet {
		addPrefix = cli.AddPrefix
	}

	checkIntegrity := false
	if fc.CheckIntegrity != nil {
		checkIntegrity = *fc.CheckIntegrity
	}

	allowSingle := true
	if fc.KnownSeriesAllowSingle != nil {
		allowSingle = *fc.KnownSeriesAllowSingle
	}
	if cli.AllowSingleSet {
		allowSingle = cli.AllowSingle
	}

	dirs := make([]string, 0, len(fc.KnownSeriesDirs)+1)
	if s := strings.TrimSpace(fc.KnownSeriesDir); s != "" {
		dirs = append(dirs, s)
	}
	for _, d := range fc.KnownSeriesDirs {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	dirs = dedupe(dirs)

	conc := fc.Concurrency
	if conc == 0 {
		conc = DefaultConcurrency
	}
	if conc < 1 {
		conc = 1
	}
	if conc > maxConcurrency {
		conc = maxConcurrency
	}

	sim := similarity.DefaultConfig()
	if fc.Similarity != nil {
		sim = mergeSimilarity(sim, *fc.Similarity)
	}

	return EffectiveConfig{
		Path:            target,
		Formats:         formats,
		ArchiveFormats:  archives,
		Prefix:          prefix,
		AddPrefix:       addPrefix,
		CheckIntegrity:  checkIntegrity,
		KnownSeriesDirs: dirs,
		AllowSingle:     allowSingle,
		Concurrency:     conc,
		Prefixes:        detectPrefixes(prefix),
		Similarity:      sim,
	}
}

// mergeSimilarity 用文件里显式给出的阈值覆盖默认值；零值视为未设置。
func mergeSimilarity(base, over similarity.Config) similarity.Config {
	if over.Threshold != 0 {
		base.Threshold = over.Threshold
	}
	if over.LengthDiffMax != 0 {
		base.LengthDiffMax = over.LengthDiffMax
	}
	if over.RatioThreshold != 0 {
		base.RatioThreshold = over.RatioThreshold
	}
	if over.PartialThreshold != 0 {
		base.PartialThreshold = over.PartialThreshold
	}
	if over.TokenThreshold != 0 {
		base.TokenThreshold = over.TokenThreshold
	}
	return base
}

// detectPrefixes 合并内置识别前缀与创建前缀，按 rune 长度降序，
// 保证剥前缀时更长、更具体的标记先被尝试。
func detectPrefixes(creation string) []string {
	all := append([]string{creation}, DetectPrefixes...)
	seen := make(map[string]struct{}, len(all))
	out := make([]string, 0, len(all))
	for _, p := range all {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

// normalizeExts 统一扩展名写法：小写、补前导点、去重、排序。
func normalizeExts(exts []string) []string {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" || e == "." {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, s := range b {
		set[s] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, s := range a {
		if _, ok := set[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 TOML 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, fmt.Errorf("解析 TOML 失败：%w", err)
	}
	return fc, true, nil
}
