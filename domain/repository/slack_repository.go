package repository

import (
	"fmt"
	"time"

	"github.com/Songmu/retry"
	ttlcache "github.com/jellydator/ttlcache/v3"
	"github.com/slack-go/slack"
)

var ErrSlackNotFound = fmt.Errorf("not found")

type SlackRepositoryer interface {
	GetChannelByName(name string) (*slack.Channel, error)
	PostMessage(channelID string, opts ...slack.MsgOption) error
}

type SlackRepository struct {
	client        *slack.Client
	channelsCache *ttlcache.Cache[string, []slack.Channel]
}

func NewSlackRepository(client *slack.Client) *SlackRepository {
	r := &SlackRepository{
		client:        client,
		channelsCache: ttlcache.New(ttlcache.WithTTL[string, []slack.Channel](time.Hour)),
	}
	go r.channelsCache.Start()
	return r
}

func (h *SlackRepository) getChannels() ([]slack.Channel, error) {
	cacheKey := "channels"
	if channels := h.channelsCache.Get(cacheKey); channels != nil {
		return channels.Value(), nil
	}

	var all []slack.Channel
	params := &slack.GetConversationsParameters{
		ExcludeArchived: true,
		Limit:           1000,
		Types:           []string{"public_channel", "private_channel"},
	}
	for {
		channels, next, err := h.client.GetConversations(params)
		if err != nil {
			return nil, err
		}
		all = append(all, channels...)
		if next == "" {
			break
		}
		params.Cursor = next
	}
	h.channelsCache.Set(cacheKey, all, ttlcache.DefaultTTL)
	return all, nil
}

func (h *SlackRepository) GetChannelByName(name string) (*slack.Channel, error) {
	channels, err := h.getChannels()
	if err != nil {
		return nil, err
	}
	for _, c := range channels {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, ErrSlackNotFound
}

func (h *SlackRepository) PostMessage(channelID string, opts ...slack.MsgOption) error {
	return retry.Retry(3, time.Second, func() error {
		_, _, err := h.client.PostMessage(channelID, opts...)
		return err
	})
}
