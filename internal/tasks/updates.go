package tasks

import (
	"fmt"

	"github.com/desertthunder/studio/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	Generating Phase = iota
	Generated
	GenerateFailed
	FetchRecords
	DeleteRecords
	Reconcile
	DownloadRecords
)

func (p Phase) String() string {
	switch p {
	case Generating:
		return "generating"
	case Generated:
		return "generated"
	case GenerateFailed:
		return "generate_failed"
	case FetchRecords:
		return "fetch_records"
	case DeleteRecords:
		return "delete_records"
	case Reconcile:
		return "reconcile"
	case DownloadRecords:
		return "download_records"
	default:
		return ""
	}
}

// sendProgress sends an update without blocking; updates are dropped when nobody is listening.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// BusyMessage is the status shown while a generation is in flight.
func BusyMessage(mode models.MediaType, model string) string {
	return fmt.Sprintf("正在生成%s，请稍候…（模型：%s）", mode.Noun(), model)
}

func generatingUpdate(mode models.MediaType, model string) ProgressUpdate {
	return ProgressUpdate{Phase: Generating, Step: 1, Total: 1, Message: BusyMessage(mode, model)}
}

func generatedUpdate(rec models.MediaRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Generated,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("%s已生成 (#%d): %s", rec.Type.Noun(), rec.ID, rec.Path),
		Data:    rec,
	}
}

func generateFailedUpdate(msg string) ProgressUpdate {
	return ProgressUpdate{Phase: GenerateFailed, Step: 1, Total: 1, Message: StatusFailed + "：" + msg}
}

func fetchRecordsUpdate(page int) ProgressUpdate {
	return ProgressUpdate{Phase: FetchRecords, Step: 1, Total: 1, Message: fmt.Sprintf("正在加载第 %d 页…", page)}
}

func deleteRecordUpdate(step, total int, id int64, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   DeleteRecords,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ #%d: %v", step, total, id, err),
		}
	}
	return ProgressUpdate{
		Phase:   DeleteRecords,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ #%d", step, total, id),
	}
}

func reconcileUpdate(page int) ProgressUpdate {
	return ProgressUpdate{Phase: Reconcile, Step: 1, Total: 1, Message: fmt.Sprintf("重新加载第 %d 页…", page)}
}

func downloadUpdate(path string, n int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadRecords,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("已保存 %s (%d bytes)", path, n),
		Data:    path,
	}
}
