// Package processor is the task driver of spec.md §4.13: it claims a
// transaction, runs it through every extraction and validation stage in
// order, and persists the terminal status and report atomically. It is
// the one place that knows the pipeline's stage ordering; every stage
// package itself is stateless and order-agnostic.
package processor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/invoice-pipeline/arithmetic"
	"github.com/diewo77/invoice-pipeline/blob"
	"github.com/diewo77/invoice-pipeline/businessvalidate"
	"github.com/diewo77/invoice-pipeline/canonical"
	"github.com/diewo77/invoice-pipeline/formatrouter"
	"github.com/diewo77/invoice-pipeline/internal/logging"
	"github.com/diewo77/invoice-pipeline/internal/pipelineerr"
	"github.com/diewo77/invoice-pipeline/mapper"
	"github.com/diewo77/invoice-pipeline/schematron"
	"github.com/diewo77/invoice-pipeline/store"
	"github.com/diewo77/invoice-pipeline/xsdvalidate"
)

// knownCurrencies is the ISO 4217 subset invariant 6 checks against,
// grounded on the same closed lookup-table shape the source system uses
// for its own format validators.
var knownCurrencies = map[string]bool{
	"EUR": true, "USD": true, "GBP": true, "CHF": true, "SEK": true,
	"NOK": true, "DKK": true, "PLN": true, "CZK": true, "HUF": true,
	"RON": true, "BGN": true, "HRK": true,
}

// knownCountries is the EU/EEA VAT country-prefix set invariant 6's
// soft check warns against.
var knownCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "CY": true, "CZ": true,
	"DE": true, "DK": true, "EE": true, "ES": true, "FI": true,
	"FR": true, "GR": true, "HR": true, "HU": true, "IE": true,
	"IT": true, "LT": true, "LU": true, "LV": true, "MT": true,
	"NL": true, "PL": true, "PT": true, "RO": true, "SE": true,
	"SI": true, "SK": true, "GB": true, "CH": true, "NO": true,
}

// Deps bundles every stage the driver orchestrates. Each is optional in
// the sense that a nil Business validator or unconfigured Schematron
// still lets the pipeline run — spec.md §4.9/§4.12 both tolerate a
// degraded environment; a nil XSD validator does not, since structural
// validation is mandatory.
type Deps struct {
	Metadata    *store.MetadataStore
	Blob        blob.Store
	XSD         *xsdvalidate.Validator
	Schematron  *schematron.Validator
	Business    *businessvalidate.Validator
	Tolerance   decimal.Decimal
	MaxAttempts int // redelivery budget; defaults to 5 if unset
}

// Driver runs the end-to-end state machine for one transaction.
type Driver struct {
	deps Deps
}

func New(deps Deps) *Driver {
	if deps.MaxAttempts <= 0 {
		deps.MaxAttempts = 5
	}
	return &Driver{deps: deps}
}

// stageNames lists every stage in pipeline order, used to fill in
// SkipRemaining after a FATAL short-circuit.
var stageNames = []string{"mapping", "xsd", "schematron", "arithmetic", "business"}

// Run executes one delivery attempt for transactionID. It returns an
// error for transient failures the caller (the queue consumer) should
// redeliver, and a programmer error if the claimed row cannot be read
// back; every permanent outcome is recorded via Finalize and reported
// through a nil return.
func (d *Driver) Run(ctx context.Context, transactionID string) error {
	log := logging.WithTransaction(logging.WithComponent("processor"), transactionID)

	ok, err := d.deps.Metadata.Claim(ctx, transactionID)
	if err != nil {
		return err
	}
	if !ok {
		log.Info().Msg("claim skipped: transaction not in a claimable state")
		return nil
	}

	tx, err := d.deps.Metadata.Get(ctx, transactionID)
	if err != nil {
		return err
	}
	if tx == nil {
		return pipelineerr.Programmer("processor.Run", errTransactionVanished(transactionID))
	}

	raw, err := d.deps.Blob.Get(ctx, tx.BlobURI)
	if err != nil {
		return d.retryOrFail(ctx, transactionID, tx.RetryCount, err)
	}

	report, terminalStatus, inv, processedXML, runErr := d.process(ctx, transactionID, raw)
	if runErr != nil {
		return d.retryOrFail(ctx, transactionID, tx.RetryCount, runErr)
	}

	processedURI := ""
	if len(processedXML) > 0 {
		processedURI = tx.BlobURI + ".processed.xml"
		if err := d.deps.Blob.Put(ctx, processedURI, processedXML); err != nil {
			return d.retryOrFail(ctx, transactionID, tx.RetryCount, err)
		}
	}

	duplicate := hasFinding(report, canonical.CodeERPDuplicate)
	if err := d.deps.Metadata.Finalize(ctx, transactionID, terminalStatus, report, inv, processedURI, duplicate); err != nil {
		return err
	}

	log.Info().Str("status", string(terminalStatus)).Msg("transaction finalized")
	return nil
}

// process runs every stage over raw bytes and returns the accumulated
// report, the derived terminal status, the mapped invoice (nil if
// mapping never succeeded), and the extracted XML for archival. A
// non-nil error means a transient failure interrupted the run before
// any terminal status could be derived.
func (d *Driver) process(ctx context.Context, transactionID string, raw []byte) (canonical.Report, canonical.TerminalStatus, *canonical.Invoice, []byte, error) {
	var report canonical.Report
	stageStart := time.Now()

	routed, err := formatrouter.Route(raw)
	if err != nil {
		if pipelineerr.KindOf(err) == pipelineerr.KindTransient {
			return report, "", nil, nil, err
		}
		report.AddStep(canonical.ValidationStep{
			Stage:   "extraction",
			Outcome: canonical.OutcomeFatal,
			Findings: []canonical.Finding{{
				Severity: canonical.SeverityFatal,
				Code:     canonical.CodeCarrierUnsupported,
				Message:  err.Error(),
			}},
		})
		report.SkipRemaining(stageNames, "extraction")
		return report, canonical.StatusInvalid, nil, nil, nil
	}

	if routed.Carrier == formatrouter.CarrierPDF && routed.Syntax == "" {
		// PDF with no recognised embedded invoice XML: not an error,
		// but nothing downstream can run.
		report.AddStep(canonical.ValidationStep{
			Stage:   "extraction",
			Outcome: canonical.OutcomeWarnings,
			Findings: []canonical.Finding{{
				Severity: canonical.SeverityWarning,
				Code:     canonical.CodeCarrierOpaque,
				Message:  "pdf carrier has no recognised embedded invoice attachment",
			}},
		})
		report.SkipRemaining(stageNames, "extraction")
		return report, canonical.StatusManualReview, nil, nil, nil
	}

	inv, findings, _, mapped := mapper.Map(routed)
	mappingOutcome := canonical.OutcomeSuccess
	if !mapped {
		mappingOutcome = canonical.OutcomeFatal
	} else if len(findings) > 0 {
		mappingOutcome = canonical.OutcomeWarnings
	}
	report.AddStep(canonical.ValidationStep{Stage: "mapping", Outcome: mappingOutcome, Findings: findings})
	if !mapped {
		d.logStage(ctx, transactionID, report.Steps[0], stageStart)
		report.SkipRemaining(stageNames[1:], "mapping")
		return report, report.TerminalStatus(false), nil, routed.XML, nil
	}

	for _, v := range inv.StructuralInvariants(knownCurrencies) {
		report.Steps[0].Findings = append(report.Steps[0].Findings, canonical.Finding{
			Severity: canonical.SeverityFatal,
			Code:     canonical.CodeMapInvalidValue,
			Message:  v.Reason,
		})
		report.Steps[0].Outcome = canonical.OutcomeFatal
	}
	for _, w := range inv.PartyWarnings(knownCountries) {
		report.Steps[0].Findings = append(report.Steps[0].Findings, canonical.Finding{
			Severity: canonical.SeverityWarning,
			Code:     canonical.CodeVATPrefixUnknown,
			Message:  w,
		})
	}
	d.logStage(ctx, transactionID, report.Steps[0], stageStart)
	stageStart = time.Now()
	if report.Steps[0].HasFatal() {
		report.SkipRemaining(stageNames[1:], "mapping")
		return report, report.TerminalStatus(false), &inv, routed.XML, nil
	}

	xsdStep, err := d.deps.XSD.Validate(routed.Syntax, routed.XML)
	if err != nil {
		return report, "", &inv, routed.XML, err
	}
	report.AddStep(xsdStep)
	d.logStage(ctx, transactionID, xsdStep, stageStart)
	stageStart = time.Now()
	if xsdStep.HasFatal() {
		report.SkipRemaining(stageNames[2:], "xsd")
		return report, report.TerminalStatus(false), &inv, routed.XML, nil
	}

	schematronStep := d.deps.Schematron.Validate(ctx, routed.XML)
	report.AddStep(schematronStep)
	d.logStage(ctx, transactionID, schematronStep, stageStart)
	stageStart = time.Now()
	if schematronStep.HasFatal() {
		report.SkipRemaining(stageNames[3:], "schematron")
		return report, report.TerminalStatus(false), &inv, routed.XML, nil
	}

	arithmeticStep := arithmetic.Validate(inv, d.deps.Tolerance)
	report.AddStep(arithmeticStep)
	d.logStage(ctx, transactionID, arithmeticStep, stageStart)
	stageStart = time.Now()
	if arithmeticStep.HasFatal() {
		report.SkipRemaining(stageNames[4:], "arithmetic")
		return report, report.TerminalStatus(false), &inv, routed.XML, nil
	}

	if d.deps.Business != nil {
		bizStep, err := d.deps.Business.Validate(ctx, inv, d.deps.Tolerance)
		if err != nil {
			return report, "", &inv, routed.XML, err
		}
		report.AddStep(bizStep)
		d.logStage(ctx, transactionID, bizStep, stageStart)
	}

	return report, report.TerminalStatus(false), &inv, routed.XML, nil
}

// logStage records one stage's timing and outcome. AppendLog failures
// are logged but never fail the run — per-stage timing is a diagnostic
// supplement, not part of the terminal-status contract.
func (d *Driver) logStage(ctx context.Context, transactionID string, step canonical.ValidationStep, start time.Time) {
	detail := ""
	if len(step.Findings) > 0 {
		detail = step.Findings[0].Message
	}
	if err := d.deps.Metadata.AppendLog(ctx, transactionID, step.Stage, step.Outcome, time.Since(start), detail); err != nil {
		log := logging.WithComponent("processor")
		log.Error().Err(err).Str("stage", step.Stage).Msg("failed to append processing log")
	}
}

// retryOrFail decides how to dispose of a mid-run error. A programmer
// error (a bug, not an environment hiccup) goes straight to ERROR
// without spending a retry, per spec §7's error taxonomy. A transient
// error is reverted to RECEIVED for another delivery attempt unless
// retryCount has already exhausted spec.md §6's MaxAttempts, in which
// case it is finalized as ERROR too — the queue must not keep
// redelivering a transaction the driver has already given up on.
func (d *Driver) retryOrFail(ctx context.Context, transactionID string, retryCount int, cause error) error {
	if pipelineerr.KindOf(cause) == pipelineerr.KindTransient && retryCount+1 < d.deps.MaxAttempts {
		if revertErr := d.deps.Metadata.RevertToReceived(ctx, transactionID); revertErr != nil {
			return revertErr
		}
		return cause
	}

	report := canonical.Report{Steps: []canonical.ValidationStep{{
		Stage:   "processing",
		Outcome: canonical.OutcomeFatal,
		Findings: []canonical.Finding{{
			Severity: canonical.SeverityFatal,
			Code:     canonical.CodeProcessingError,
			Message:  cause.Error(),
		}},
	}}}
	_ = d.deps.Metadata.Finalize(ctx, transactionID, canonical.StatusError, report, nil, "", false)
	return nil
}

func hasFinding(report canonical.Report, code string) bool {
	for _, step := range report.Steps {
		for _, f := range step.Findings {
			if f.Code == code {
				return true
			}
		}
	}
	return false
}

type transactionVanishedError struct{ id string }

func (e *transactionVanishedError) Error() string {
	return "processor: transaction " + e.id + " vanished between claim and read"
}

func errTransactionVanished(id string) error { return &transactionVanishedError{id: id} }
