package integrations

import (
	"context"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type slackSendParams struct {
	Channel  string `param:"channel" validate:"required"`
	Text     string `param:"text" validate:"required"`
	Blocks   any    `param:"blocks"`
	ThreadTS string `param:"thread_ts"`
}

type slackChannelsParams struct {
	Types string `param:"types"`
	Limit int    `param:"limit" validate:"gte=0,lte=1000"`
}

func (p *slackChannelsParams) setDefaults() { p.Types = "public_channel,private_channel"; p.Limit = 100 }

type slackHistoryParams struct {
	Channel string `param:"channel" validate:"required"`
	Limit   int    `param:"limit" validate:"gte=0,lte=1000"`
}

func (p *slackHistoryParams) setDefaults() { p.Limit = 20 }

type slackSearchParams struct {
	Query string `param:"query" validate:"required"`
	Count int    `param:"count" validate:"gte=0,lte=100"`
}

func (p *slackSearchParams) setDefaults() { p.Count = 20 }

type slackUserParams struct {
	UserID string `param:"user_id" validate:"required"`
}

type slackMentionsParams struct {
	UserID string `param:"user_id" validate:"required"`
	Limit  int    `param:"limit" validate:"gte=0,lte=100"`
}

func (p *slackMentionsParams) setDefaults() { p.Limit = 20 }

type slackUnreadParams struct {
	Channel string `param:"channel" validate:"required"`
}

type slackHandlers struct {
	client *clients.SlackClient
}

func registerSlack(r *Registry, client *clients.SlackClient) {
	h := &slackHandlers{client: client}
	r.Handle(types.AppSlack, "send_message", Typed(h.sendMessage))
	r.Handle(types.AppSlack, "list_channels", Typed(h.listChannels))
	r.Handle(types.AppSlack, "get_channel_history", Typed(h.channelHistory))
	r.Handle(types.AppSlack, "search_messages", Typed(h.searchMessages))
	r.Handle(types.AppSlack, "get_user_info", Typed(h.userInfo))
	r.Handle(types.AppSlack, "get_recent_mentions", Typed(h.recentMentions))
	r.Handle(types.AppSlack, "get_unread_messages", Typed(h.unreadMessages))
}

func (h *slackHandlers) sendMessage(ctx context.Context, call Call, p *slackSendParams) (Payload, error) {
	result, err := h.client.PostMessage(ctx, call.Token(), p.Channel, p.Text, p.ThreadTS, p.Blocks)
	if err != nil {
		return nil, err
	}
	return Payload{
		"channel": str(result, "channel"),
		"ts":      str(result, "ts"),
		"message": slackMessageItem(sub(result, "message"), str(result, "channel"), ""),
	}, nil
}

func (h *slackHandlers) listChannels(ctx context.Context, call Call, p *slackChannelsParams) (Payload, error) {
	channels, err := h.client.ListChannels(ctx, call.Token(), p.Types, p.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(channels))
	for _, c := range channels {
		out = append(out, map[string]any{
			"id":          str(c, "id"),
			"channel_id":  str(c, "id"),
			"name":        str(c, "name"),
			"summary":     "#" + str(c, "name"),
			"is_private":  c["is_private"] == true,
			"num_members": c["num_members"],
			"topic":       str(sub(c, "topic"), "value"),
		})
	}
	return Payload{"channels": items(out), "count": len(out)}, nil
}

func (h *slackHandlers) channelHistory(ctx context.Context, call Call, p *slackHistoryParams) (Payload, error) {
	messages, err := h.client.History(ctx, call.Token(), p.Channel, p.Limit, "")
	if err != nil {
		return nil, err
	}
	return Payload{"messages": items(slackMessageItems(messages, p.Channel)), "count": len(messages)}, nil
}

func (h *slackHandlers) searchMessages(ctx context.Context, call Call, p *slackSearchParams) (Payload, error) {
	matches, total, err := h.client.SearchMessages(ctx, call.Token(), p.Query, p.Count)
	if err != nil {
		return nil, err
	}
	return Payload{"messages": items(slackMessageItems(matches, "")), "count": total, "query": p.Query}, nil
}

func (h *slackHandlers) userInfo(ctx context.Context, call Call, p *slackUserParams) (Payload, error) {
	user, err := h.client.UserInfo(ctx, call.Token(), p.UserID)
	if err != nil {
		return nil, err
	}
	profile := sub(user, "profile")
	return Payload{"user": map[string]any{
		"id":           str(user, "id"),
		"name":         str(user, "name"),
		"summary":      firstNonEmpty(str(profile, "real_name"), str(user, "real_name"), str(user, "name")),
		"real_name":    firstNonEmpty(str(profile, "real_name"), str(user, "real_name")),
		"display_name": str(profile, "display_name"),
		"title":        str(profile, "title"),
		"timezone":     str(user, "tz"),
	}}, nil
}

func (h *slackHandlers) recentMentions(ctx context.Context, call Call, p *slackMentionsParams) (Payload, error) {
	matches, total, err := h.client.SearchMessages(ctx, call.Token(), "<@"+p.UserID+">", p.Limit)
	if err != nil {
		return nil, err
	}
	return Payload{"mentions": items(slackMessageItems(matches, "")), "count": total}, nil
}

// unreadMessages returns channel messages newer than the user's read marker.
func (h *slackHandlers) unreadMessages(ctx context.Context, call Call, p *slackUnreadParams) (Payload, error) {
	info, err := h.client.ChannelInfo(ctx, call.Token(), p.Channel)
	if err != nil {
		return nil, err
	}
	messages, err := h.client.History(ctx, call.Token(), p.Channel, 100, str(info, "last_read"))
	if err != nil {
		return nil, err
	}
	return Payload{"unread_messages": items(slackMessageItems(messages, p.Channel)), "count": len(messages)}, nil
}

func slackMessageItems(messages []map[string]any, channelID string) []map[string]any {
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, slackMessageItem(m, channelID, ""))
	}
	return out
}

// slackMessageItem normalizes history and search messages. Search results
// carry their channel inline; history results take it from the request.
func slackMessageItem(m map[string]any, channelID, channelName string) map[string]any {
	if ch := sub(m, "channel"); len(ch) > 0 {
		channelID = firstNonEmpty(str(ch, "id"), channelID)
		channelName = firstNonEmpty(str(ch, "name"), channelName)
	}
	text := str(m, "text")
	return map[string]any{
		"id":         str(m, "ts"),
		"ts":         str(m, "ts"),
		"thread_ts":  str(m, "thread_ts"),
		"channel_id": channelID,
		"channel":    channelName,
		"sender":     firstNonEmpty(str(m, "username"), str(m, "user")),
		"text":       text,
		"summary":    truncate(text, 120),
		"permalink":  str(m, "permalink"),
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
