package stages

import (
	"context"

	"clinsight.com/cra/records"
)

type llmCall struct {
	role         string
	instructions string
	inputContext string
}

type llmMock struct {
	responses []string
	err       error
	calls     []llmCall
}

func (m *llmMock) Complete(_ context.Context, role string, instructions string, inputContext string) (string, error) {
	m.calls = append(m.calls, llmCall{role: role, instructions: instructions, inputContext: inputContext})
	if m.err != nil {
		return "", m.err
	}
	if len(m.responses) == 0 {
		return "", nil
	}
	response := m.responses[0]
	if len(m.responses) > 1 {
		m.responses = m.responses[1:]
	}
	return response, nil
}

type historyMock struct {
	entries []records.HistoryEntry
	err     error
	calls   []string
}

func (m *historyMock) ListHistory(nationalID string) ([]records.HistoryEntry, error) {
	m.calls = append(m.calls, nationalID)
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}
