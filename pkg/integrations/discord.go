package integrations

import (
	"context"

	"github.com/Gabiro3/blimp2/pkg/integrations/clients"
	"github.com/Gabiro3/blimp2/pkg/types"
)

type discordSendParams struct {
	ChannelID string `param:"channel_id" validate:"required"`
	Content   string `param:"content" validate:"required,max=2000"`
	Embeds    []any  `param:"embeds"`
}

type discordChannelParams struct {
	ChannelID string `param:"channel_id" validate:"required"`
	Limit     int    `param:"limit" validate:"gte=0,lte=100"`
}

func (p *discordChannelParams) setDefaults() { p.Limit = 20 }

type discordHandlers struct {
	client *clients.DiscordClient
}

func registerDiscord(r *Registry, client *clients.DiscordClient) {
	h := &discordHandlers{client: client}
	r.Handle(types.AppDiscord, "send_message", Typed(h.sendMessage))
	r.Handle(types.AppDiscord, "get_channel", Typed(h.getChannel))
	r.Handle(types.AppDiscord, "get_channel_messages", Typed(h.channelMessages))
}

func (h *discordHandlers) sendMessage(ctx context.Context, call Call, p *discordSendParams) (Payload, error) {
	msg, err := h.client.SendMessage(ctx, call.Token(), p.ChannelID, p.Content, p.Embeds)
	if err != nil {
		return nil, err
	}
	return Payload{"message": discordMessageItem(msg, "")}, nil
}

func (h *discordHandlers) getChannel(ctx context.Context, call Call, p *discordChannelParams) (Payload, error) {
	ch, err := h.client.GetChannel(ctx, call.Token(), p.ChannelID)
	if err != nil {
		return nil, err
	}
	return Payload{"channel": map[string]any{
		"id":         str(ch, "id"),
		"channel_id": str(ch, "id"),
		"guild_id":   str(ch, "guild_id"),
		"name":       str(ch, "name"),
		"summary":    "#" + str(ch, "name"),
		"topic":      str(ch, "topic"),
	}}, nil
}

// channelMessages needs the guild for deep links, so it reads the channel first.
func (h *discordHandlers) channelMessages(ctx context.Context, call Call, p *discordChannelParams) (Payload, error) {
	ch, err := h.client.GetChannel(ctx, call.Token(), p.ChannelID)
	if err != nil {
		return nil, err
	}
	messages, err := h.client.ListMessages(ctx, call.Token(), p.ChannelID, p.Limit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		out = append(out, discordMessageItem(m, str(ch, "guild_id")))
	}
	return Payload{"messages": items(out), "count": len(out)}, nil
}

func discordMessageItem(m map[string]any, guildID string) map[string]any {
	content := str(m, "content")
	return map[string]any{
		"id":         str(m, "id"),
		"channel_id": str(m, "channel_id"),
		"guild_id":   firstNonEmpty(str(m, "guild_id"), guildID),
		"author":     str(sub(m, "author"), "username"),
		"content":    content,
		"summary":    truncate(content, 120),
		"timestamp":  str(m, "timestamp"),
	}
}
