package main

import (
	"context"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"foghorn/audio"
	"foghorn/vgate"
)

// VoiceHost tracks one voice call per guild and feeds each call the session
// credentials arriving from the main gateway.
type VoiceHost struct {
	s *discordgo.Session

	mu    sync.Mutex
	calls map[string]*voiceCall
}

func newVoiceHost(s *discordgo.Session) *VoiceHost {
	h := &VoiceHost{s: s, calls: make(map[string]*voiceCall)}
	s.AddHandler(h.onVoiceStateUpdate)
	s.AddHandler(h.onVoiceServerUpdate)
	return h
}

// Join asks the main gateway for a voice session in the channel. The voice
// gateway connects once both the state and server updates have arrived.
func (h *VoiceHost) Join(guildID, channelID string) (*voiceCall, error) {
	h.mu.Lock()
	if c := h.calls[guildID]; c != nil {
		c.close()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &voiceCall{
		host:      h,
		guildID:   guildID,
		channelID: channelID,
		frames:    make(chan []byte, 16),
		ready:     make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	h.calls[guildID] = c
	h.mu.Unlock()
	err := h.s.ChannelVoiceJoinManual(guildID, channelID, false, true)
	return c, err
}

// Leave tells the main gateway to drop out of voice for the guild.
func (h *VoiceHost) Leave(guildID string) error {
	return h.s.ChannelVoiceJoinManual(guildID, "", false, true)
}

func (h *VoiceHost) callFor(guildID string) *voiceCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[guildID]
}

func (h *VoiceHost) onVoiceStateUpdate(s *discordgo.Session, st *discordgo.VoiceStateUpdate) {
	if st.UserID != s.State.User.ID || st.ChannelID == "" {
		return
	}
	if c := h.callFor(st.GuildID); c != nil {
		c.setSession(st.SessionID)
	}
}

func (h *VoiceHost) onVoiceServerUpdate(s *discordgo.Session, st *discordgo.VoiceServerUpdate) {
	if c := h.callFor(st.GuildID); c != nil {
		c.setServer(st.Endpoint, st.Token)
	}
}

// voiceCall is one guild's voice session: credentials gathered from the main
// gateway, the voice gateway they unlock, and the frame stream pumped into
// it.
type voiceCall struct {
	host      *VoiceHost
	guildID   string
	channelID string

	frames chan []byte
	ready  chan error
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	sessionID string
	endpoint  string
	token     string
	gw        *vgate.Gateway
}

func (c *voiceCall) setSession(sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
	c.maybeConnect()
}

func (c *voiceCall) setServer(endpoint, token string) {
	c.mu.Lock()
	c.endpoint = endpoint
	c.token = token
	c.mu.Unlock()
	c.maybeConnect()
}

// maybeConnect dials the voice gateway once both halves of the credentials
// have arrived.
func (c *voiceCall) maybeConnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gw != nil || c.sessionID == "" || c.endpoint == "" {
		return
	}
	guildID, err := strconv.ParseUint(c.guildID, 10, 64)
	if err != nil {
		logrus.WithError(err).WithField("guild", c.guildID).Error("unparseable guild id")
		return
	}
	userID, err := strconv.ParseUint(c.host.s.State.User.ID, 10, 64)
	if err != nil {
		logrus.WithError(err).Error("unparseable user id")
		return
	}
	entry := vgate.SessionEntry{
		Endpoint:  c.endpoint,
		GuildID:   guildID,
		SessionID: c.sessionID,
		Token:     c.token,
	}
	gw := vgate.New(entry, userID)
	c.gw = gw
	gw.Connect(func(err error) {
		select {
		case c.ready <- err:
		default:
			// a post-connect failure; the pump notices via Play errors
			if err != nil {
				logrus.WithError(err).WithField("guild", c.guildID).Warn("voice session ended")
			}
		}
	})
	go c.run()
}

// run waits for the connect outcome and then pumps frames for the life of
// the call.
func (c *voiceCall) run() {
	select {
	case err := <-c.ready:
		if err != nil {
			logrus.WithError(err).WithField("guild", c.guildID).Error("voice connect failed")
			return
		}
	case <-c.ctx.Done():
		return
	}
	c.mu.Lock()
	gw := c.gw
	c.mu.Unlock()
	if err := audio.Pump(c.ctx, gw, c.frames, params); err != nil && c.ctx.Err() == nil {
		logrus.WithError(err).WithField("guild", c.guildID).Warn("voice pump stopped")
	}
}

func (c *voiceCall) close() {
	c.cancel()
	c.mu.Lock()
	gw := c.gw
	c.mu.Unlock()
	if gw != nil {
		gw.Close()
	}
}
