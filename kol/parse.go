package kol

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// This file holds every rule that extracts meaning from the site's responses.
// The rules are pure functions over raw bodies with no shared state, so each
// one can be unit tested against fixture strings. None of them may leak into
// the session/retry logic: the executor only ever applies the pluggable
// logged-out classifier, everything else happens in the caller.

var (
	loginPagePattern  = regexp.MustCompile(`(?i)name=["']?loginform|This script is not logged in|Login to the Kingdom of Loathing`)
	rolloverPattern   = regexp.MustCompile(`(?i)nightly maintenance|rollover.*in progress|The Kingdom is currently (?:in|undergoing) rollover`)
	profileNamePat    = regexp.MustCompile(`<b>([^<>]+)</b> \(#(\d+)\)`)
	profileLevelPat   = regexp.MustCompile(`(?i)<b>Level</b>:?\s*(?:</td><td>)?(\d+)|Level (\d+)`)
	profileClassPat   = regexp.MustCompile(`(?i)<b>Class:?</b>:?\s*(?:</td><td[^>]*>)?([A-Za-z -]+?)\s*(?:<|$)`)
	profileClanPat    = regexp.MustCompile(`showclan\.php\?recruiter=1&whichclan=(\d+)">([^<]+)</a>`)
)

// LoggedOutSignature is the default classifier for "the site answered with
// its anonymous page". HTTP 200 with a login form in the body means the
// session expired even though the transport succeeded.
func LoggedOutSignature(body string) bool {
	return loginPagePattern.MatchString(body)
}

// RolloverBanner reports whether a page body is the nightly maintenance
// banner shown while the site is down.
func RolloverBanner(body string) bool {
	return rolloverPattern.MatchString(body)
}

// StatusReply is the JSON object the status endpoint returns for a logged-in
// session. PasswordHash is the request token ("pwd") that token-requiring
// endpoints expect.
type StatusReply struct {
	PlayerID     string `json:"playerid"`
	Name         string `json:"name"`
	PasswordHash string `json:"pwd"`
}

// ParseStatus decodes the status endpoint's JSON. A body that is not JSON,
// or JSON without a password hash, means the session is not logged in.
func ParseStatus(body string) (StatusReply, error) {
	var status StatusReply
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		return StatusReply{}, fmt.Errorf("status response is not JSON: %w", err)
	}
	if status.PasswordHash == "" {
		return StatusReply{}, errors.New("status response has no pwd field")
	}
	return status, nil
}

// chatReply mirrors the JSON shape of the chat polling endpoint.
type chatReply struct {
	Msgs []struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		Msg     string `json:"msg"`
		Who     struct {
			Name string `json:"name"`
			ID   string `json:"id"`
		} `json:"who"`
	} `json:"msgs"`
	Last string `json:"last"`
}

// ParseChatMessages decodes one chat poll response into typed messages plus
// the server's cursor for the next poll.
func ParseChatMessages(body string) ([]ChatMessage, string, error) {
	var reply chatReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return nil, "", fmt.Errorf("chat response is not JSON: %w", err)
	}

	var messages []ChatMessage
	for _, m := range reply.Msgs {
		messages = append(messages, ChatMessage{
			Type:     m.Type,
			Channel:  m.Channel,
			Sender:   m.Who.Name,
			SenderID: m.Who.ID,
			Message:  m.Msg,
		})
	}
	return messages, reply.Last, nil
}

// PlayerProfile is what the bot scrapes off a player page.
type PlayerProfile struct {
	Name     string
	ID       string
	Level    string
	Class    string
	ClanID   string
	ClanName string
}

// ParsePlayerProfile extracts name, id, level, class and clan from a player
// page. Returns false when the body does not look like a profile at all
// (deleted player, logged-out page slipping through).
func ParsePlayerProfile(body string) (PlayerProfile, bool) {
	nameMatch := profileNamePat.FindStringSubmatch(body)
	if nameMatch == nil {
		return PlayerProfile{}, false
	}

	profile := PlayerProfile{
		Name: nameMatch[1],
		ID:   nameMatch[2],
	}

	if m := profileLevelPat.FindStringSubmatch(body); m != nil {
		if m[1] != "" {
			profile.Level = m[1]
		} else {
			profile.Level = m[2]
		}
	}
	if m := profileClassPat.FindStringSubmatch(body); m != nil {
		profile.Class = strings.TrimSpace(m[1])
	}
	if m := profileClanPat.FindStringSubmatch(body); m != nil {
		profile.ClanID = m[1]
		profile.ClanName = m[2]
	}
	return profile, true
}

// WhitelistMember is one row of the clan whitelist page.
type WhitelistMember struct {
	Name string
	ID   string
	Rank string
}

var whitelistPlayerPat = regexp.MustCompile(`showplayer\.php\?who=(\d+)`)

// ParseWhitelistMembers walks the whitelist page's member table. The table
// has no id attribute, so it is located by the first row whose cells contain
// player links.
func ParseWhitelistMembers(body string) ([]WhitelistMember, error) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse whitelist page: %w", err)
	}

	var members []WhitelistMember

	var processRow func(*html.Node)
	processRow = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "tr" {
			var cells []*html.Node
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.Data == "td" {
					cells = append(cells, c)
				}
			}

			if len(cells) >= 2 {
				member := WhitelistMember{}
				// First cell holds the player link with name and id.
				var walkCell func(*html.Node)
				walkCell = func(c *html.Node) {
					if c.Type == html.ElementNode && c.Data == "a" {
						for _, attr := range c.Attr {
							if attr.Key == "href" {
								if m := whitelistPlayerPat.FindStringSubmatch(attr.Val); m != nil {
									member.ID = m[1]
								}
							}
						}
						if c.FirstChild != nil && c.FirstChild.Type == html.TextNode {
							member.Name = strings.TrimSpace(c.FirstChild.Data)
						}
					}
					for child := c.FirstChild; child != nil; child = child.NextSibling {
						walkCell(child)
					}
				}
				walkCell(cells[0])

				// Second cell is the assigned rank.
				for c := cells[1].FirstChild; c != nil; c = c.NextSibling {
					if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
						member.Rank = strings.TrimSpace(c.Data)
						break
					}
				}

				if member.ID != "" && member.Name != "" {
					members = append(members, member)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			processRow(c)
		}
	}
	processRow(doc)

	return members, nil
}

// kmailReply mirrors the JSON list the kmail endpoint returns.
type kmailReply []struct {
	ID       string `json:"id"`
	FromID   string `json:"fromid"`
	FromName string `json:"fromname"`
	Message  string `json:"message"`
}

// ParseKmails decodes the kmail endpoint's JSON list.
func ParseKmails(body string) ([]Kmail, error) {
	var reply kmailReply
	if err := json.Unmarshal([]byte(body), &reply); err != nil {
		return nil, fmt.Errorf("kmail response is not JSON: %w", err)
	}

	var kmails []Kmail
	for _, k := range reply {
		kmails = append(kmails, Kmail{
			ID:         k.ID,
			SenderID:   k.FromID,
			SenderName: k.FromName,
			Message:    k.Message,
		})
	}
	return kmails, nil
}
