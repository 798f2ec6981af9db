package store

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ashureev/tonechat/internal/domain"
)

// stateRecord is the persisted form of a SessionState.
type stateRecord struct {
	TopicsJSON      string
	TranscriptsJSON string
	ToneJSON        string
	Active          string
}

func encodeState(state *domain.SessionState) (stateRecord, error) {
	topics, err := json.Marshal(state.Topics)
	if err != nil {
		return stateRecord{}, fmt.Errorf("encode topics: %w", err)
	}
	transcripts, err := json.Marshal(state.Transcripts)
	if err != nil {
		return stateRecord{}, fmt.Errorf("encode transcripts: %w", err)
	}
	tone, err := json.Marshal(state.Tone)
	if err != nil {
		return stateRecord{}, fmt.Errorf("encode tone: %w", err)
	}
	return stateRecord{
		TopicsJSON:      string(topics),
		TranscriptsJSON: string(transcripts),
		ToneJSON:        string(tone),
		Active:          state.Active,
	}, nil
}

// decodeState never fails: unreadable topics or transcripts are treated as
// absent, and anything else is repaired by Normalize.
func decodeState(ownerID string, rec stateRecord) *domain.SessionState {
	state := &domain.SessionState{Active: rec.Active}

	if err := json.Unmarshal([]byte(rec.TopicsJSON), &state.Topics); err != nil {
		slog.Warn("Discarding unreadable topics", "owner_id", ownerID, "error", err)
		return domain.DefaultState()
	}
	if err := json.Unmarshal([]byte(rec.TranscriptsJSON), &state.Transcripts); err != nil {
		slog.Warn("Discarding unreadable transcripts", "owner_id", ownerID, "error", err)
		return domain.DefaultState()
	}
	if rec.ToneJSON != "" {
		if err := json.Unmarshal([]byte(rec.ToneJSON), &state.Tone); err != nil {
			slog.Warn("Discarding unreadable tone preference", "owner_id", ownerID, "error", err)
			state.Tone = domain.DefaultTone()
		}
	}

	state.Normalize()
	return state
}
