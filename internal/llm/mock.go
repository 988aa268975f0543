package llm

import (
	"context"

	"github.com/NamrataaKale/Account-Plan-Generator/internal/domain"
)

// MockClient is a test double for Client.
type MockClient struct {
	ProviderName string
	StartFunc    func(opts ConversationOptions) Conversation
}

func (m *MockClient) Name() string { return m.ProviderName }

func (m *MockClient) StartConversation(opts ConversationOptions) Conversation {
	if m.StartFunc != nil {
		return m.StartFunc(opts)
	}
	return &MockConversation{}
}

// MockConversation is a test double for Conversation.
type MockConversation struct {
	SendTurnFunc        func(ctx context.Context, text string, attachment *domain.Attachment) (*TurnResult, error)
	SendToolResultsFunc func(ctx context.Context, results []ToolResult) (*TurnResult, error)
}

func (m *MockConversation) SendTurn(ctx context.Context, text string, attachment *domain.Attachment) (*TurnResult, error) {
	if m.SendTurnFunc != nil {
		return m.SendTurnFunc(ctx, text, attachment)
	}
	return &TurnResult{Text: "mock response"}, nil
}

func (m *MockConversation) SendToolResults(ctx context.Context, results []ToolResult) (*TurnResult, error) {
	if m.SendToolResultsFunc != nil {
		return m.SendToolResultsFunc(ctx, results)
	}
	return &TurnResult{Text: "mock follow-up"}, nil
}
