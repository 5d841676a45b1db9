// Package schematron drives the KoSIT validator JAR as a subprocess
// and parses its SVRL report, implementing spec.md §4.9. Grounded on
// original_source/src/services/validation/kosit_validator.py, which
// shells out to the same "java -jar validator.jar -s scenarios.xml -r
// outdir input.xml" tool this package wraps in Go idiom (os/exec with
// a context timeout instead of subprocess.run(timeout=...)).
package schematron

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/diewo77/invoice-pipeline/canonical"
)

// defaultMaxConcurrentJVMs caps how many KoSIT subprocesses run at
// once. Each is a full JVM invocation; letting the whole worker pool
// spawn one per in-flight transaction would starve the host under
// load, the same concern pdf_splitter.go addresses for page uploads
// with errgroup.SetLimit — here expressed as a semaphore because the
// call is a single blocking exec.Command, not a fan-out of goroutines.
const defaultMaxConcurrentJVMs = 2

// Config is what the validator needs to invoke the KoSIT tool.
type Config struct {
	JarPath           string
	ScenariosPath     string
	Timeout           time.Duration // default 120s per spec.md §6
	MaxConcurrentJVMs int64         // default 2
}

// Validator wraps one KoSIT JAR invocation per call. It is stateless
// beyond the concurrency gate; unlike the XSD validator there is no
// compiled-schema cache to share, since KoSIT loads its own scenario
// configuration per run.
type Validator struct {
	cfg  Config
	jvms *semaphore.Weighted
}

func New(cfg Config) *Validator {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.MaxConcurrentJVMs == 0 {
		cfg.MaxConcurrentJVMs = defaultMaxConcurrentJVMs
	}
	return &Validator{cfg: cfg, jvms: semaphore.NewWeighted(cfg.MaxConcurrentJVMs)}
}

// Validate writes xml to a scoped temp file, runs KoSIT against it,
// and parses the resulting SVRL report. If the JAR is absent or the
// subprocess times out, the step outcome is SKIPPED with an INFO
// finding rather than an error — the pipeline continues without a
// semantic verdict, per spec.md §4.9.
func (v *Validator) Validate(ctx context.Context, xml []byte) canonical.ValidationStep {
	if v.cfg.JarPath == "" || v.cfg.ScenariosPath == "" {
		return skipped("kosit validator assets not configured")
	}
	if _, err := os.Stat(v.cfg.JarPath); err != nil {
		return skipped("kosit jar not found: " + v.cfg.JarPath)
	}

	if err := v.jvms.Acquire(ctx, 1); err != nil {
		return skipped("kosit validator queue wait aborted: " + err.Error())
	}
	defer v.jvms.Release(1)

	tempDir, err := os.MkdirTemp("", "invoice-kosit-")
	if err != nil {
		return skipped("could not create scoped temp directory: " + err.Error())
	}
	defer os.RemoveAll(tempDir)

	txID := uuid.NewString()
	inputPath := filepath.Join(tempDir, txID+".xml")
	if err := os.WriteFile(inputPath, xml, 0o600); err != nil {
		return skipped("could not write scoped input file: " + err.Error())
	}

	runCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "java", "-Dfile.encoding=UTF-8", "-jar", v.cfg.JarPath,
		"-s", v.cfg.ScenariosPath, "-r", tempDir, inputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	reportPath := inputPath + "-report.xml"
	if _, statErr := os.Stat(reportPath); statErr == nil {
		return parseSVRL(reportPath)
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return skipped("kosit validator timed out after " + v.cfg.Timeout.String())
	}
	if errors.Is(runErr, exec.ErrNotFound) {
		return skipped("java runtime not found on PATH")
	}
	if runErr != nil {
		return skipped(fmt.Sprintf("kosit validator failed: %v (stderr: %s)", runErr, stderr.String()))
	}
	// exit code 0, no report: no issues found.
	return canonical.ValidationStep{Stage: "schematron", Outcome: canonical.OutcomeSuccess}
}

func skipped(reason string) canonical.ValidationStep {
	return canonical.ValidationStep{
		Stage:   "schematron",
		Outcome: canonical.OutcomeSkipped,
		Findings: []canonical.Finding{{
			Severity: canonical.SeverityInfo,
			Code:     canonical.CodeSemanticSkipped,
			Message:  reason,
		}},
	}
}

func parseSVRL(reportPath string) canonical.ValidationStep {
	data, err := os.ReadFile(reportPath)
	if err != nil {
		return skipped("could not read svrl report: " + err.Error())
	}
	root, err := xmlquery.Parse(bytes.NewReader(data))
	if err != nil {
		return skipped("could not parse svrl report: " + err.Error())
	}

	var findings []canonical.Finding

	failed, _ := xmlquery.QueryAll(root, "//*[local-name()='failed-assert']")
	for _, n := range failed {
		findings = append(findings, svrlFinding(n, severityForFlag(n.SelectAttr("flag"))))
	}

	successful, _ := xmlquery.QueryAll(root, "//*[local-name()='successful-report']")
	for _, n := range successful {
		findings = append(findings, svrlFinding(n, canonical.SeverityWarning))
	}

	outcome := canonical.OutcomeSuccess
	switch {
	case hasAny(findings, canonical.SeverityFatal):
		outcome = canonical.OutcomeFatal
	case hasAny(findings, canonical.SeverityError):
		outcome = canonical.OutcomeErrors
	case len(findings) > 0:
		outcome = canonical.OutcomeWarnings
	}

	return canonical.ValidationStep{
		Stage:    "schematron",
		Outcome:  outcome,
		Findings: findings,
	}
}

// severityForFlag maps a KoSIT SVRL failed-assert's flag attribute to a
// finding severity, per spec.md §4.9. Assertions with no flag (the
// common case for hard business-rule failures) default to ERROR.
func severityForFlag(flag string) canonical.Severity {
	switch strings.ToLower(flag) {
	case "warning":
		return canonical.SeverityWarning
	case "information", "info":
		return canonical.SeverityInfo
	case "fatal":
		return canonical.SeverityFatal
	default:
		return canonical.SeverityError
	}
}

func svrlFinding(n *xmlquery.Node, sev canonical.Severity) canonical.Finding {
	ruleID := n.SelectAttr("id")
	location := n.SelectAttr("location")
	message := ""
	if text := xmlquery.FindOne(n, "*[local-name()='text']"); text != nil {
		message = text.InnerText()
	}
	return canonical.Finding{
		Severity: sev,
		Code:     canonical.SchematronCode(ruleID),
		Message:  message,
		XPath:    location,
	}
}

func hasAny(findings []canonical.Finding, sev canonical.Severity) bool {
	for _, f := range findings {
		if f.Severity == sev {
			return true
		}
	}
	return false
}

