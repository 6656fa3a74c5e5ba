package suno

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phrazzld/gitsong/internal/domain"
)

type callbackBody struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		CallbackType string `json:"callbackType"`
		TaskID       string `json:"task_id"`
		// Some deliveries use the camel-case key of the status API.
		TaskIDAlt string `json:"taskId"`
		Data      []struct {
			ID             string  `json:"id"`
			AudioURL       string  `json:"audio_url"`
			StreamAudioURL string  `json:"stream_audio_url"`
			ImageURL       string  `json:"image_url"`
			Title          string  `json:"title"`
			Prompt         string  `json:"prompt"`
			Duration       float64 `json:"duration"`
		} `json:"data"`
	} `json:"data"`
}

// ParseCallback normalises a webhook body into a TaskUpdate. A body in the
// shape of the status API is accepted as well.
func (c *Client) ParseCallback(payload []byte) (*domain.TaskUpdate, error) {
	return ParseCallback(payload)
}

// ParseCallback normalises a webhook body into a TaskUpdate.
func ParseCallback(payload []byte) (*domain.TaskUpdate, error) {
	var body callbackBody
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if body.Data.CallbackType == "" {
		var env envelope[recordInfo]
		if err := json.Unmarshal(payload, &env); err == nil && env.Data.Status != "" {
			u, err := normaliseRecord(env.Data)
			if err != nil {
				return nil, err
			}
			u.Source = domain.UpdateSourceCallback
			return u, nil
		}
		return nil, fmt.Errorf("%w: missing callback type", ErrInvalidPayload)
	}

	taskID := body.Data.TaskID
	if taskID == "" {
		taskID = body.Data.TaskIDAlt
	}
	if taskID == "" {
		return nil, fmt.Errorf("%w: missing task id", ErrInvalidPayload)
	}

	u := &domain.TaskUpdate{TaskID: taskID, Source: domain.UpdateSourceCallback}
	switch strings.ToLower(body.Data.CallbackType) {
	case "text", "first":
		u.Status = domain.TaskStatusProcessing
	case "complete":
		u.Status = domain.TaskStatusCompleted
	case "error":
		u.Status = domain.TaskStatusFailed
	default:
		return nil, fmt.Errorf("%w: unknown callback type %q", ErrInvalidPayload, body.Data.CallbackType)
	}
	// A non-200 code on a completion marker is an upstream failure.
	if body.Code != 0 && body.Code != 200 && u.Status != domain.TaskStatusFailed {
		u.Status = domain.TaskStatusFailed
	}
	if u.Status == domain.TaskStatusFailed {
		u.Error = body.Msg
		if u.Error == "" {
			u.Error = "music generation failed"
		}
		return u, nil
	}

	for _, d := range body.Data.Data {
		u.ResultRefs = append(u.ResultRefs, domain.ResultRef{
			ID:        d.ID,
			AudioURL:  d.AudioURL,
			StreamURL: d.StreamAudioURL,
			ImageURL:  d.ImageURL,
			Title:     d.Title,
			Text:      d.Prompt,
			Duration:  d.Duration,
		})
	}
	return u, nil
}
