package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/fusionbot-vk/fusionbot/internal/config"
	"github.com/fusionbot-vk/fusionbot/internal/models"
)

const (
	vkAPIBase    = "https://api.vk.com/method"
	vkAPIVersion = "5.199"

	managersCacheTTL = 5 * time.Minute
	namesCacheTTL    = time.Hour
)

// VK is the VK Bots Long Poll transport for one community.
type VK struct {
	api      string
	token    string
	groupID  int64
	offset   int64
	wait     int
	client   *http.Client
	logger   *logrus.Logger
	managers *gocache.Cache
	names    *gocache.Cache

	server string
	key    string
	ts     string
}

// NewVK creates a VK transport from config.
func NewVK(cfg *config.BotConfig, logger *logrus.Logger) *VK {
	return &VK{
		api:      vkAPIBase,
		token:    cfg.Token,
		groupID:  cfg.GroupID,
		offset:   cfg.GroupPeerOffset,
		wait:     cfg.LongPollWait,
		client:   &http.Client{Timeout: time.Duration(cfg.LongPollWait+10) * time.Second},
		logger:   logger,
		managers: gocache.New(managersCacheTTL, 10*time.Minute),
		names:    gocache.New(namesCacheTTL, 10*time.Minute),
	}
}

type vkError struct {
	Code    int    `json:"error_code"`
	Message string `json:"error_msg"`
}

type vkEnvelope struct {
	Response json.RawMessage `json:"response"`
	Error    *vkError        `json:"error"`
}

// call invokes one VK API method and unmarshals the response payload.
func (v *VK) call(ctx context.Context, method string, params url.Values, out interface{}) error {
	params.Set("access_token", v.token)
	params.Set("v", vkAPIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		v.api+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s response read failed: %w", method, err)
	}

	var envelope vkEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("%s response parse failed: %w", method, err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("%s error %d: %s", method, envelope.Error.Code, envelope.Error.Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Response, out); err != nil {
			return fmt.Errorf("%s payload parse failed: %w", method, err)
		}
	}
	return nil
}

type longPollServer struct {
	Server string `json:"server"`
	Key    string `json:"key"`
	TS     string `json:"ts"`
}

func (v *VK) initLongPoll(ctx context.Context) error {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(v.groupID, 10))

	var srv longPollServer
	if err := v.call(ctx, "groups.getLongPollServer", params, &srv); err != nil {
		return err
	}
	v.server = srv.Server
	v.key = srv.Key
	v.ts = srv.TS
	return nil
}

type longPollUpdate struct {
	Type   string `json:"type"`
	Object struct {
		Message struct {
			FromID int64  `json:"from_id"`
			PeerID int64  `json:"peer_id"`
			Text   string `json:"text"`
			Date   int64  `json:"date"`
		} `json:"message"`
	} `json:"object"`
}

type longPollResult struct {
	TS      string           `json:"ts"`
	Failed  int              `json:"failed"`
	Updates []longPollUpdate `json:"updates"`
}

// Events starts the long poll loop. Direct messages to the community are
// dropped; only group conversation messages become events.
func (v *VK) Events(ctx context.Context) <-chan models.InboundEvent {
	out := make(chan models.InboundEvent, 64)

	go func() {
		defer close(out)

		for {
			if ctx.Err() != nil {
				return
			}
			if v.server == "" {
				if err := v.initLongPoll(ctx); err != nil {
					v.logger.WithField("error", err).Error("Long poll init failed, retrying")
					select {
					case <-ctx.Done():
						return
					case <-time.After(5 * time.Second):
					}
					continue
				}
			}

			result, err := v.check(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				v.logger.WithField("error", err).Warn("Long poll check failed")
				v.server = ""
				continue
			}

			switch result.Failed {
			case 0:
				v.ts = result.TS
			case 1:
				// History is outdated, the new ts recovers it.
				v.ts = result.TS
				continue
			default:
				// Key expired or information lost, re-init the server.
				v.server = ""
				continue
			}

			for _, u := range result.Updates {
				if u.Type != "message_new" {
					continue
				}
				msg := u.Object.Message
				if msg.PeerID <= v.offset {
					continue
				}
				first, last := v.userName(ctx, msg.FromID)
				ev := models.InboundEvent{
					UserID:    msg.FromID,
					PeerID:    msg.PeerID,
					Text:      msg.Text,
					FirstName: first,
					LastName:  last,
					Timestamp: msg.Date,
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

func (v *VK) check(ctx context.Context) (*longPollResult, error) {
	q := url.Values{}
	q.Set("act", "a_check")
	q.Set("key", v.key)
	q.Set("ts", v.ts)
	q.Set("wait", strconv.Itoa(v.wait))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.server+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create long poll request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("long poll request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("long poll read failed: %w", err)
	}

	var result longPollResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("long poll parse failed: %w", err)
	}
	return &result, nil
}

// Send posts a message to a conversation.
func (v *VK) Send(ctx context.Context, reply models.OutboundReply) error {
	params := url.Values{}
	params.Set("peer_id", strconv.FormatInt(reply.PeerID, 10))
	params.Set("message", reply.Text)
	params.Set("random_id", strconv.FormatInt(rand.Int63(), 10))

	return v.call(ctx, "messages.send", params, nil)
}

// RemoveChatUser removes a member from a group conversation.
func (v *VK) RemoveChatUser(ctx context.Context, peerID, userID int64) error {
	params := url.Values{}
	params.Set("chat_id", strconv.FormatInt(peerID-v.offset, 10))
	params.Set("member_id", strconv.FormatInt(userID, 10))

	return v.call(ctx, "messages.removeChatUser", params, nil)
}

type membersResult struct {
	Items []struct {
		ID   int64  `json:"id"`
		Role string `json:"role"`
	} `json:"items"`
}

// IsPlatformAdmin reports whether the user manages the community. The
// manager list is cached briefly because it changes rarely.
func (v *VK) IsPlatformAdmin(ctx context.Context, peerID, userID int64) bool {
	const cacheKey = "managers"

	var ids map[int64]bool
	if cached, found := v.managers.Get(cacheKey); found {
		ids = cached.(map[int64]bool)
	} else {
		params := url.Values{}
		params.Set("group_id", strconv.FormatInt(v.groupID, 10))
		params.Set("filter", "managers")

		var result membersResult
		if err := v.call(ctx, "groups.getMembers", params, &result); err != nil {
			v.logger.WithField("error", err).Warn("Failed to fetch community managers")
			return false
		}

		ids = make(map[int64]bool, len(result.Items))
		for _, item := range result.Items {
			ids[item.ID] = true
		}
		v.managers.Set(cacheKey, ids, gocache.DefaultExpiration)
	}

	return ids[userID]
}

type vkUser struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// userName resolves a user's display name, cached to avoid a users.get
// round trip per message.
func (v *VK) userName(ctx context.Context, userID int64) (string, string) {
	key := strconv.FormatInt(userID, 10)
	if cached, found := v.names.Get(key); found {
		u := cached.(vkUser)
		return u.FirstName, u.LastName
	}

	params := url.Values{}
	params.Set("user_ids", key)

	var users []vkUser
	if err := v.call(ctx, "users.get", params, &users); err != nil || len(users) == 0 {
		return "", ""
	}

	v.names.Set(key, users[0], gocache.DefaultExpiration)
	return users[0].FirstName, users[0].LastName
}
