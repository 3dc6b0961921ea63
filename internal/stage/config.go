// Package stage models one external generator stage: its tool, its pass-through
// argument list and the small set of options the orchestrator recognizes (the
// output-directory option it overrides, the target-language selector and the
// grammar encoding). Configs are immutable values built once per run.
package stage

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/parsekit/grambuild/internal/errs"
	"github.com/parsekit/grambuild/internal/lang"
)

// Recognized option names. Matching is case-insensitive, values may be quoted,
// and both "=" and ":" separators are accepted.
const (
	OptCodeGenerator = "CODE_GENERATOR"
	OptEncoding      = "GRAMMAR_ENCODING"
)

func optionPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^-` + regexp.QuoteMeta(name) + `[=:]"?([^"]*)"?$`)
}

var (
	codeGenPattern  = optionPattern(OptCodeGenerator)
	encodingPattern = optionPattern(OptEncoding)
)

// Config describes one stage invocation template.
type Config struct {
	// Name identifies the stage in logs and errors ("treegen", "parsegen").
	Name string
	// Tool is the external executable (resolved via PATH when not absolute).
	Tool string
	// Args is the verbatim pass-through argument list, opaque to the
	// orchestrator except for the recognized subset.
	Args []string
	// OutputDirOption is the single named option whose value the orchestrator
	// substitutes with the intermediate directory (e.g. "OUTPUT_DIRECTORY").
	OutputDirOption string

	// Values parsed from Args.
	Language  lang.Language // zero when not selected explicitly
	Encoding  string        // "" when not set
	OutputDir string        // explicit output directory from Args, "" otherwise

	outputDirPattern *regexp.Regexp
}

// Parse builds a Config from a raw argument list, extracting the recognized
// options. An invalid language selector is a configuration error.
func Parse(name, tool string, args []string, outputDirOption string) (Config, error) {
	cfg := Config{
		Name:             name,
		Tool:             tool,
		Args:             append([]string(nil), args...),
		OutputDirOption:  outputDirOption,
		outputDirPattern: optionPattern(outputDirOption),
	}
	for _, arg := range args {
		if m := codeGenPattern.FindStringSubmatch(arg); m != nil {
			l, err := lang.FromSelector(m[1])
			if err != nil {
				return Config{}, errs.ConfigWrap(err, "stage %q", name)
			}
			cfg.Language = l
		}
		if m := encodingPattern.FindStringSubmatch(arg); m != nil {
			cfg.Encoding = m[1]
		}
		if m := cfg.outputDirPattern.FindStringSubmatch(arg); m != nil {
			cfg.OutputDir = m[1]
		}
	}
	return cfg, nil
}

// EffectiveLanguage returns the explicit language or the default.
func (c Config) EffectiveLanguage() lang.Language {
	if c.Language.Zero() {
		return lang.Default
	}
	return c.Language
}

// CommandArgs assembles the final argument list for one invocation: the
// pass-through args minus any user-supplied output-directory option, the
// injected intermediate output directory and the absolute input file last.
func (c Config) CommandArgs(intermediateDir, inputFile string) []string {
	out := make([]string, 0, len(c.Args)+2)
	for _, arg := range c.Args {
		if c.outputDirPattern.MatchString(arg) {
			continue
		}
		out = append(out, arg)
	}
	out = append(out, fmt.Sprintf("-%s=%s", c.OutputDirOption, intermediateDir))
	out = append(out, inputFile)
	return out
}

// CheckConsistent verifies that two stages of a pipeline agree on encoding and
// target language, counting defaults. The preprocessor feeds the generator, so
// disagreement would silently corrupt the hand-off.
func CheckConsistent(pre, gen Config) error {
	var problems []string

	preEnc, genEnc := pre.Encoding, gen.Encoding
	if !(preEnc != "" && (genEnc == "" || preEnc == genEnc) ||
		preEnc == "" && genEnc == "") {
		problems = append(problems, fmt.Sprintf(
			"grammar encodings are inconsistent: %s: %q, %s: %q", pre.Name, display(preEnc), gen.Name, display(genEnc)))
	}

	preLang, genLang := pre.Language, gen.Language
	if !(!preLang.Zero() && (genLang.Zero() || preLang.Name == genLang.Name) ||
		preLang.Zero() && (genLang.Zero() || genLang.Name == lang.Default.Name)) {
		problems = append(problems, fmt.Sprintf(
			"languages are inconsistent: %s: %q, %s: %q", pre.Name, displayLang(preLang), gen.Name, displayLang(genLang)))
	}

	if len(problems) > 0 {
		return errs.Config("inconsistent stage option(s): %s", strings.Join(problems, "; "))
	}
	return nil
}

func display(enc string) string {
	if enc == "" {
		return "default"
	}
	return enc
}

func displayLang(l lang.Language) string {
	if l.Zero() {
		return lang.Default.Name + " (default)"
	}
	return l.Name
}
