package alert

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stanleysince1993/MedicAI/internal/domain/observation"
	"github.com/stanleysince1993/MedicAI/internal/platform/metrics"
)

type devicePayload struct {
	Observations []observation.Input `json:"observations"`
}

// HandleDeviceMessage ingests a batch published on
// "<prefix>/<patientId>". Rejected batches are counted and returned, never
// retried.
func (e *Engine) HandleDeviceMessage(ctx context.Context, topic string, payload []byte) error {
	idx := strings.LastIndex(topic, "/")
	pid, err := uuid.Parse(topic[idx+1:])
	if err != nil {
		metrics.BatchesRejected.WithLabelValues("mqtt").Inc()
		return fmt.Errorf("topic %q does not end in a patient id", topic)
	}
	var body devicePayload
	if err := json.Unmarshal(payload, &body); err != nil {
		metrics.BatchesRejected.WithLabelValues("mqtt").Inc()
		return fmt.Errorf("decode device payload: %w", err)
	}
	if len(body.Observations) == 0 {
		return nil
	}
	created, err := e.ProcessBatch(ctx, pid, body.Observations)
	if err != nil {
		var verr *observation.ValidationError
		if errors.As(err, &verr) {
			metrics.BatchesRejected.WithLabelValues("mqtt").Inc()
		}
		return err
	}
	e.logger.Debug().
		Str("patient_id", pid.String()).
		Int("observations", len(body.Observations)).
		Int("alerts", len(created)).
		Msg("device batch ingested")
	return nil
}
