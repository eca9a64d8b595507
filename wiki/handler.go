package wiki

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/horrible-little-slime/oaf/discord"
)

// WikiRequest defines the inputs for the wiki command.
type WikiRequest struct {
	Query string `discord:"description:Item, effect, or page to look up on the wiki"`
}

// DiscordFunctionWiki returns the wiki command, which links the best-matching
// wiki article for a query.
func (c *Client) DiscordFunctionWiki() discord.BotFunctionI {
	handler := func(invoker discord.Invoker, req WikiRequest) (*discordgo.InteractionResponseData, error) {
		result, err := c.Search(context.Background(), req.Query)
		if errors.Is(err, ErrNoResults) {
			return &discordgo.InteractionResponseData{
				Content: fmt.Sprintf("No wiki results for %q.", req.Query),
			}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("wiki lookup failed: %w", err)
		}

		return &discordgo.InteractionResponseData{
			Content: fmt.Sprintf("**%s**\n%s", result.Title, result.URL),
		}, nil
	}
	return discord.NewBotFunction("wiki", handler, nil)
}
