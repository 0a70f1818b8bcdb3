package data

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/khaledhikmat/aicam-go/model"
	"github.com/khaledhikmat/aicam-go/service/config"
)

type filesDBService struct {
	CfgSvc config.IService
}

// NewFilesDB persists every entity kind as a JSON array in its own file
// under the configured settings folder.
func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesDBService) NewError(err interface{}) error {
	var customErr model.CustomError
	switch e := err.(type) {
	case model.CustomError:
		customErr = e
	case error:
		customErr = model.CustomError{
			Processor:  "N/A",
			Inner:      e,
			Message:    e.Error(),
			StackTrace: "N/A",
		}
	default:
		customErr = model.CustomError{
			Processor:  "N/A",
			Message:    fmt.Sprintf("%v", e),
			StackTrace: "N/A",
		}
	}

	inner := ""
	if customErr.Inner != nil {
		inner = customErr.Inner.Error()
	}

	errorData := struct {
		Timestamp  int64                  `json:"timestamp"`
		Processor  string                 `json:"processor"`
		Inner      string                 `json:"innerError"`
		Message    string                 `json:"message"`
		StackTrace string                 `json:"stackTrace"`
		Misc       map[string]interface{} `json:"misc"`
	}{
		Timestamp:  time.Now().Unix(),
		Processor:  customErr.Processor,
		Inner:      inner,
		Message:    customErr.Message,
		StackTrace: customErr.StackTrace,
		Misc:       customErr.Misc,
	}
	return newEntity(errorData, "errors", svc.CfgSvc)
}

func (svc *filesDBService) NewRenderStats(stats model.RenderStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, "render-stats", svc.CfgSvc)
}

func (svc *filesDBService) NewInferenceStats(stats model.InferenceStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, "inference-stats", svc.CfgSvc)
}

func (svc *filesDBService) NewSenderStats(stats model.SenderStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, "sender-stats", svc.CfgSvc)
}

func (svc *filesDBService) NewReceiverStats(stats model.ReceiverStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, "receiver-stats", svc.CfgSvc)
}

func (svc *filesDBService) NewSessionStats(stats model.SessionStats) error {
	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, "session-stats", svc.CfgSvc)
}

func entityPath(filename string, cfgsvc config.IService) string {
	return filepath.Join(cfgsvc.GetSettingsFolder(), fmt.Sprintf("%s.json", filename))
}

func newEntity[T any](entity T, filename string, cfgsvc config.IService) error {
	entities, err := retrieveEntities[T](filename, cfgsvc)
	if err != nil {
		return err
	}

	entities = append(entities, entity)

	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgsvc.GetSettingsFolder(), 0755); err != nil {
		return err
	}

	// Rewrite the whole file (with truncation)
	return os.WriteFile(entityPath(filename, cfgsvc), data, 0644)
}

func retrieveEntities[T any](filename string, cfgsvc config.IService) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(entityPath(filename, cfgsvc))
	if err != nil {
		// WARNING: File not found, return empty slice
		return entities, nil
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, err
	}

	return entities, nil
}
