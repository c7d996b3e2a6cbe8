package musicgen

import "github.com/waghostel/LearningSong-sub001/internal/domain"

// Upstream task statuses reported by record-info.
const (
	UpstreamPending             = "PENDING"
	UpstreamTextSuccess         = "TEXT_SUCCESS"
	UpstreamFirstSuccess        = "FIRST_SUCCESS"
	UpstreamGenerating          = "GENERATING"
	UpstreamSuccess             = "SUCCESS"
	UpstreamFailed              = "FAILED"
	UpstreamCreateTaskFailed    = "CREATE_TASK_FAILED"
	UpstreamGenerateAudioFailed = "GENERATE_AUDIO_FAILED"
	UpstreamCallbackException   = "CALLBACK_EXCEPTION"
	UpstreamSensitiveWordError  = "SENSITIVE_WORD_ERROR"
)

var statusMap = map[string]domain.TaskStatus{
	UpstreamPending:             domain.TaskStatusQueued,
	UpstreamTextSuccess:         domain.TaskStatusProcessing,
	UpstreamFirstSuccess:        domain.TaskStatusProcessing,
	UpstreamGenerating:          domain.TaskStatusProcessing,
	UpstreamSuccess:             domain.TaskStatusCompleted,
	UpstreamFailed:              domain.TaskStatusFailed,
	UpstreamCreateTaskFailed:    domain.TaskStatusFailed,
	UpstreamGenerateAudioFailed: domain.TaskStatusFailed,
	UpstreamCallbackException:   domain.TaskStatusFailed,
	UpstreamSensitiveWordError:  domain.TaskStatusFailed,
}

var progressMap = map[string]int{
	UpstreamPending:      0,
	UpstreamGenerating:   25,
	UpstreamTextSuccess:  50,
	UpstreamFirstSuccess: 75,
	UpstreamSuccess:      100,
}

// MapStatus maps every upstream status to an internal one. Unknown values
// map to queued with known=false so the caller can report them.
func MapStatus(upstream string) (status domain.TaskStatus, known bool) {
	status, known = statusMap[upstream]
	if !known {
		return domain.TaskStatusQueued, false
	}
	return status, true
}

// Progress estimates completion from the upstream status.
func Progress(upstream string) int {
	return progressMap[upstream]
}
