package conversation

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/PabloGalante/supportchat/internal/domain"
	"github.com/PabloGalante/supportchat/internal/metrics"
	"github.com/PabloGalante/supportchat/internal/observability"
)

// MaxMessageLength caps a requester message, in Unicode code points.
const MaxMessageLength = 10000

type Service struct {
	llm   domain.ReplyGenerator
	store domain.ConversationStore
	now   func() time.Time
}

func NewService(llm domain.ReplyGenerator, store domain.ConversationStore) *Service {
	return &Service{
		llm:   llm,
		store: store,
		now:   time.Now,
	}
}

type SendMessageInput struct {
	Message string

	// ConversationID is optional; empty starts a new conversation.
	ConversationID string
}

type SendMessageOutput struct {
	Reply          string
	ConversationID domain.ConversationID
	Timestamp      time.Time
}

// SendMessage stores the requester's message, asks the model for a reply
// and stores the reply. The user message is kept even when generation fails.
func (s *Service) SendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	out, err := s.sendMessage(ctx, in)
	if err != nil {
		derr := s.fail(ctx, "send_message", err)
		metrics.MessagesProcessed.WithLabelValues(string(derr.Kind)).Inc()
		return nil, derr
	}
	metrics.MessagesProcessed.WithLabelValues("ok").Inc()
	return out, nil
}

func (s *Service) sendMessage(ctx context.Context, in SendMessageInput) (*SendMessageOutput, error) {
	if err := validateMessage(in.Message); err != nil {
		return nil, err
	}

	var (
		convID   domain.ConversationID
		supplied = in.ConversationID != ""
	)
	if supplied {
		id, err := domain.ParseConversationID(in.ConversationID)
		if err != nil {
			return nil, invalidInput("The conversation id is not valid.")
		}
		convID = id
	}

	log := observability.LoggerFromContext(ctx)

	if supplied {
		conv, err := s.store.GetConversation(ctx, convID)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, domain.ErrConversationNotFound
		}
	} else {
		conv, err := s.store.CreateConversation(ctx)
		if err != nil {
			return nil, err
		}
		convID = conv.ID
		metrics.ConversationsCreated.Inc()
		log.Info("conversation created", "conversation_id", convID)
	}

	log = log.With("conversation_id", convID)
	log.Info("sending message", "message_len", utf8.RuneCountInString(in.Message))

	// Persisted before generation so the requester's input survives a model failure.
	userMsg, err := s.store.AppendMessage(ctx, convID, domain.RoleUser, in.Message)
	if err != nil {
		return nil, err
	}

	all, err := s.store.ListMessages(ctx, convID)
	if err != nil {
		return nil, err
	}
	history := make([]*domain.Message, 0, len(all))
	for _, m := range all {
		if m.ID != userMsg.ID {
			history = append(history, m)
		}
	}

	replyText, err := s.llm.GenerateReply(ctx, domain.TurnsFrom(history), in.Message)
	if err != nil {
		var gerr *domain.GatewayError
		if !errors.As(err, &gerr) {
			err = domain.NewGatewayError(domain.GatewayUnknown, err)
		}
		return nil, err
	}

	if _, err := s.store.AppendMessage(ctx, convID, domain.RoleAssistant, replyText); err != nil {
		return nil, err
	}

	log.Info("send message completed")

	return &SendMessageOutput{
		Reply:          replyText,
		ConversationID: convID,
		Timestamp:      s.now().UTC(),
	}, nil
}

type GetHistoryInput struct {
	ConversationID string

	// Limit keeps only the most recent Limit messages; 0 means all.
	Limit int
}

type GetHistoryOutput struct {
	ConversationID domain.ConversationID
	Messages       []*domain.Message
}

// GetHistory returns the conversation's messages in chronological order.
func (s *Service) GetHistory(ctx context.Context, in GetHistoryInput) (*GetHistoryOutput, error) {
	out, err := s.getHistory(ctx, in)
	if err != nil {
		return nil, s.fail(ctx, "get_history", err)
	}
	return out, nil
}

func (s *Service) getHistory(ctx context.Context, in GetHistoryInput) (*GetHistoryOutput, error) {
	convID, err := domain.ParseConversationID(in.ConversationID)
	if err != nil {
		return nil, invalidInput("The conversation id is not valid.")
	}
	if in.Limit < 0 {
		return nil, invalidInput("The limit must not be negative.")
	}

	conv, err := s.store.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, domain.ErrConversationNotFound
	}

	msgs, err := s.store.ListMessages(ctx, convID)
	if err != nil {
		return nil, err
	}

	if in.Limit > 0 && len(msgs) > in.Limit {
		msgs = msgs[len(msgs)-in.Limit:]
	}

	observability.LoggerFromContext(ctx).Info("fetched conversation history",
		"conversation_id", convID,
		"limit", in.Limit,
		"message_count", len(msgs),
	)

	return &GetHistoryOutput{
		ConversationID: convID,
		Messages:       msgs,
	}, nil
}

func validateMessage(message string) error {
	if domain.IsBlank(message) {
		return invalidInput("Please enter a message.")
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return invalidInput("Your message is too long. Please keep it under 10,000 characters.")
	}
	return nil
}

// fail maps err into the taxonomy and logs the technical detail once.
func (s *Service) fail(ctx context.Context, op string, err error) *Error {
	derr := toError(err)
	metrics.DomainErrors.WithLabelValues(op, string(derr.Kind)).Inc()

	log := observability.LoggerFromContext(ctx).With(
		"operation", op,
		"kind", derr.Kind,
		"status", derr.StatusCode,
	)
	switch {
	case derr.Kind == KindInvalidInput, derr.Kind == KindConversationNotFound:
		log.Info("request rejected", "error", derr.Technical())
	case errors.Is(err, context.Canceled):
		log.Warn("request canceled", "error", derr.Technical())
	default:
		log.Error("request failed", "error", derr.Technical())
	}
	return derr
}
