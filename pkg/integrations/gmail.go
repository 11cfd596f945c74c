package integrations

import (
	"context"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type gmailListParams struct {
	Query      string   `param:"query"`
	MaxResults int      `param:"max_results" validate:"gte=0,lte=100"`
	LabelIDs   []string `param:"label_ids"`
}

func (p *gmailListParams) setDefaults() { p.MaxResults = 10 }

type gmailGetParams struct {
	MessageID string `param:"message_id" validate:"required"`
	Format    string `param:"format" validate:"omitempty,oneof=full metadata minimal raw"`
}

func (p *gmailGetParams) setDefaults() { p.Format = "full" }

type gmailSendParams struct {
	To      string `param:"to" validate:"required"`
	Subject string `param:"subject" validate:"required"`
	Body    string `param:"body" validate:"required"`
	Cc      string `param:"cc"`
	Bcc     string `param:"bcc"`
	HTML    bool   `param:"html"`
}

type gmailMessageParams struct {
	MessageID string `param:"message_id" validate:"required"`
}

type gmailModifyParams struct {
	MessageID      string   `param:"message_id" validate:"required"`
	AddLabelIDs    []string `param:"add_label_ids"`
	RemoveLabelIDs []string `param:"remove_label_ids"`
}

type gmailAttachmentParams struct {
	MessageID    string `param:"message_id" validate:"required"`
	AttachmentID string `param:"attachment_id" validate:"required"`
}

type gmailHandlers struct {
	client *clients.GmailClient
}

func registerGmail(r *Registry, client *clients.GmailClient) {
	h := &gmailHandlers{client: client}
	r.Handle(types.AppGmail, "list_messages", Typed(h.listMessages))
	r.Handle(types.AppGmail, "get_message", Typed(h.getMessage))
	r.Handle(types.AppGmail, "send_message", Typed(h.sendMessage))
	r.Handle(types.AppGmail, "delete_message", Typed(h.deleteMessage))
	r.Handle(types.AppGmail, "modify_message", Typed(h.modifyMessage))
	r.Handle(types.AppGmail, "create_draft", Typed(h.createDraft))
	r.Handle(types.AppGmail, "get_attachment", Typed(h.getAttachment))
}

// listMessages returns id stubs only; the executor fetches details.
func (h *gmailHandlers) listMessages(ctx context.Context, call Call, p *gmailListParams) (Payload, error) {
	ids, estimate, err := h.client.ListMessages(ctx, call.Token(), p.Query, p.MaxResults, p.LabelIDs)
	if err != nil {
		return nil, err
	}
	messages := make([]any, 0, len(ids))
	for _, id := range ids {
		messages = append(messages, map[string]any{"id": id})
	}
	return Payload{"messages": messages, "result_size_estimate": estimate}, nil
}

func (h *gmailHandlers) getMessage(ctx context.Context, call Call, p *gmailGetParams) (Payload, error) {
	raw, err := h.client.GetMessage(ctx, call.Token(), p.MessageID, p.Format)
	if err != nil {
		return nil, err
	}
	return Payload{"message": clients.ParseMessage(raw).ToItem()}, nil
}

func (h *gmailHandlers) sendMessage(ctx context.Context, call Call, p *gmailSendParams) (Payload, error) {
	sent, err := h.client.SendMessage(ctx, call.Token(), clients.OutgoingEmail{
		To: p.To, Cc: p.Cc, Bcc: p.Bcc, Subject: p.Subject, Body: p.Body, HTML: p.HTML,
	})
	if err != nil {
		return nil, err
	}
	return Payload{"message": sent}, nil
}

func (h *gmailHandlers) deleteMessage(ctx context.Context, call Call, p *gmailMessageParams) (Payload, error) {
	if err := h.client.DeleteMessage(ctx, call.Token(), p.MessageID); err != nil {
		return nil, err
	}
	return Payload{"message_id": p.MessageID}, nil
}

func (h *gmailHandlers) modifyMessage(ctx context.Context, call Call, p *gmailModifyParams) (Payload, error) {
	msg, err := h.client.ModifyMessage(ctx, call.Token(), p.MessageID, p.AddLabelIDs, p.RemoveLabelIDs)
	if err != nil {
		return nil, err
	}
	return Payload{"message": msg}, nil
}

func (h *gmailHandlers) createDraft(ctx context.Context, call Call, p *gmailSendParams) (Payload, error) {
	draft, err := h.client.CreateDraft(ctx, call.Token(), clients.OutgoingEmail{
		To: p.To, Subject: p.Subject, Body: p.Body, HTML: p.HTML,
	})
	if err != nil {
		return nil, err
	}
	return Payload{"draft": draft}, nil
}

func (h *gmailHandlers) getAttachment(ctx context.Context, call Call, p *gmailAttachmentParams) (Payload, error) {
	att, err := h.client.GetAttachment(ctx, call.Token(), p.MessageID, p.AttachmentID)
	if err != nil {
		return nil, err
	}
	att["id"] = p.AttachmentID
	att["message_id"] = p.MessageID
	return Payload{"attachment": att}, nil
}
