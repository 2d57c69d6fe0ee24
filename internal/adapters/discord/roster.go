package discord

import (
	"context"

	perr "rolegate/internal/platform/errors"

	"github.com/bwmarrin/discordgo"
)

// rosterPageSize is the Discord maximum for a members page
const rosterPageSize = 1000

// Member is the roster view the reconciler consumes
type Member struct {
	UserID string
	Roles  []string
	Bot    bool
}

// Member fetches a single guild member
func (c *Client) Member(ctx context.Context, guildID, userID string) (Member, error) {
	m, err := c.api.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		if code, ok := restStatus(err); ok && code == 404 {
			return Member{}, perr.NotFoundf("member %s not in guild %s", userID, guildID)
		}
		return Member{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "discord member lookup failed")
	}
	return fromGuildMember(m), nil
}

// Members pages through the full guild roster
func (c *Client) Members(ctx context.Context, guildID string) ([]Member, error) {
	var out []Member
	after := ""
	for {
		page, err := c.api.GuildMembers(guildID, after, rosterPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "discord roster page failed")
		}
		for _, m := range page {
			out = append(out, fromGuildMember(m))
		}
		if len(page) < rosterPageSize {
			return out, nil
		}
		// cursor via the converted view; the raw User may be nil
		after = out[len(out)-1].UserID
	}
}

func fromGuildMember(m *discordgo.Member) Member {
	out := Member{Roles: m.Roles}
	if m.User != nil {
		out.UserID = m.User.ID
		out.Bot = m.User.Bot
	}
	return out
}
