package async

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/label-verifier/constants"
	"github.com/joseph-ayodele/label-verifier/internal/common"
	"github.com/joseph-ayodele/label-verifier/internal/core/verdict"
)

// ErrorRecord is the per-item outcome when no verdict could be built.
type ErrorRecord struct {
	ImageID string              `json:"image_id"`
	Kind    constants.ErrorKind `json:"kind"`
	Message string              `json:"message"`
}

func newErrorRecord(imageID string, err error) *ErrorRecord {
	return &ErrorRecord{ImageID: imageID, Kind: common.KindOf(err), Message: err.Error()}
}

// Item is one slot of a batch: exactly one of Verdict and Error is set.
type Item struct {
	Index   int
	ImageID string
	State   constants.ItemState
	Verdict *verdict.LabelVerdict
	Error   *ErrorRecord
	Elapsed time.Duration
}

// Summary counts outcomes. Errors includes cancelled items.
type Summary struct {
	Total     int `json:"total"`
	Passed    int `json:"passed"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
	Cancelled int `json:"cancelled"`
}

type BatchResult struct {
	ID           uuid.UUID
	Items        []Item
	Submitted    int
	StartedAt    time.Time
	TotalElapsed time.Duration
	Summary      Summary
}

func summarize(items []Item) Summary {
	s := Summary{Total: len(items)}
	for _, it := range items {
		switch {
		case it.Verdict != nil && it.Verdict.OverallPass:
			s.Passed++
		case it.Verdict != nil:
			s.Failed++
		case it.Error != nil:
			s.Errors++
			if it.Error.Kind == constants.KindCancelled {
				s.Cancelled++
			}
		}
	}
	return s
}

// BatchReport is the display shape of a batch result.
type BatchReport struct {
	BatchID        string       `json:"batch_id"`
	Summary                     // total, passed, failed, errors, cancelled
	TotalElapsed   string       `json:"total_elapsed"`
	TotalElapsedMS int64        `json:"total_elapsed_ms"`
	Items          []ItemReport `json:"items"`
}

type ItemReport struct {
	Index   int                 `json:"index"`
	ImageID string              `json:"image_id"`
	State   constants.ItemState `json:"state"`
	Elapsed string              `json:"elapsed"`
	Verdict *verdict.Report     `json:"verdict,omitempty"`
	Error   *ErrorRecord        `json:"error,omitempty"`
}

func NewBatchReport(res BatchResult) BatchReport {
	r := BatchReport{
		BatchID:        res.ID.String(),
		Summary:        res.Summary,
		TotalElapsed:   verdict.FormatElapsed(res.TotalElapsed),
		TotalElapsedMS: res.TotalElapsed.Milliseconds(),
		Items:          make([]ItemReport, 0, len(res.Items)),
	}
	for _, it := range res.Items {
		ir := ItemReport{
			Index:   it.Index,
			ImageID: it.ImageID,
			State:   it.State,
			Elapsed: verdict.FormatElapsed(it.Elapsed),
			Error:   it.Error,
		}
		if it.Verdict != nil {
			vr := verdict.NewReport(*it.Verdict)
			ir.Verdict = &vr
		}
		r.Items = append(r.Items, ir)
	}
	return r
}
