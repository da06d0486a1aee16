package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskAnalyzePhase = "assessments.analyze_phase"

type AnalyzePhasePayload struct {
	AssessmentID string `json:"assessmentId"`
	Phase        string `json:"phase"`
}

func NewAnalyzePhaseTask(payload AnalyzePhasePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAnalyzePhase, data), nil
}

func ParseAnalyzePhasePayload(task *asynq.Task) (AnalyzePhasePayload, error) {
	var payload AnalyzePhasePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return AnalyzePhasePayload{}, err
	}
	return payload, nil
}
