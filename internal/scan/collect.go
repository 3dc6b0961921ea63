package scan

import (
	"log/slog"
	"os"

	"github.com/parsekit/grambuild/internal/grammar"
	"github.com/parsekit/grambuild/internal/lang"
	"github.com/parsekit/grambuild/internal/logfields"
)

// UnitDecision pairs a unit's metadata with its staleness decision.
type UnitDecision struct {
	Info     *grammar.Info
	Decision Decision
}

// CollectConfig configures one scan pass over a source root.
type CollectConfig struct {
	Scanner   Scanner
	Language  lang.Language
	Encoding  string
	Extractor grammar.Extractor
	Evaluator *Evaluator
	// FailFast aborts the scan on the first metadata error, discarding
	// partial results ("first" escalation). Otherwise failing units are
	// recorded, excluded and the scan continues ("last"/"ignore").
	FailFast bool
}

// Result is the outcome of one scan pass: the stale units that need
// processing, the units found current, and the metadata failures encountered.
type Result struct {
	Stale            []UnitDecision
	Current          []UnitDecision
	MetadataFailures []error
}

// Collect scans the source root, reads each candidate grammar's metadata and
// evaluates staleness. Only the FailFast mode returns a non-nil error for a
// metadata failure; scanner-level problems are always returned.
func Collect(cfg CollectConfig) (*Result, error) {
	files, err := cfg.Scanner.Scan()
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, rel := range files {
		info, err := grammar.Read(cfg.Language, cfg.Encoding, cfg.Scanner.Root, rel, cfg.Extractor)
		if err != nil {
			if cfg.FailFast {
				return nil, err
			}
			slog.Error("Grammar metadata extraction failed", logfields.Unit(rel), logfields.Error(err))
			res.MetadataFailures = append(res.MetadataFailures, err)
			continue
		}

		fi, err := os.Stat(info.AbsoluteGrammarFile())
		if err != nil {
			if cfg.FailFast {
				return nil, err
			}
			res.MetadataFailures = append(res.MetadataFailures, err)
			continue
		}

		d := cfg.Evaluator.Evaluate(info, fi.ModTime())
		ud := UnitDecision{Info: info, Decision: d}
		if d.Stale {
			slog.Info("Grammar included", logfields.Unit(rel), slog.String("reason", d.Reason))
			res.Stale = append(res.Stale, ud)
		} else {
			slog.Debug("Grammar up to date", logfields.Unit(rel))
			res.Current = append(res.Current, ud)
		}
	}
	return res, nil
}
