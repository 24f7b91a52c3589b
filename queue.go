package main

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

type queuedSound struct {
	channel *discordgo.Channel
	frames  [][]byte
	name    string
}

// playQueued drains the play queue, joining or moving voice channels as
// needed and leaving after a second of idleness.
func playQueued(ctx context.Context, s *discordgo.Session) {
	var cur *voiceCall
	var lastCID, lastGID string
	h := newVoiceHost(s)
	leaveTimer := time.NewTimer(0)
	defer func() {
		if cur != nil {
			cur.close()
		}
		leaveTimer.Stop()
	}()
	for {
		var q queuedSound
		select {
		case <-ctx.Done():
			logrus.Debug("playq: exiting")
			return
		case <-leaveTimer.C:
			if cur != nil {
				logrus.Debug("playq: leaving")
				cur.close()
				h.Leave(lastGID)
				cur = nil
				lastCID, lastGID = "", ""
			}
			continue
		case q = <-queueCh:
		}
		leaveTimer.Stop()
		select {
		case <-leaveTimer.C:
		default:
		}
		if cur == nil || q.channel.GuildID != lastGID || q.channel.ID != lastCID {
			if cur != nil && q.channel.GuildID != lastGID {
				cur.close()
				h.Leave(lastGID)
			}
			cur = nil
			var err error
			cur, err = h.Join(q.channel.GuildID, q.channel.ID)
			if err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"channel": q.channel.ID,
					"guild":   q.channel.GuildID,
				}).Error("failed to join voice channel")
				continue
			}
			lastGID, lastCID = q.channel.GuildID, q.channel.ID
		}
		logrus.WithField("sound", q.name).Info("playing")
	frameLoop:
		for _, frame := range q.frames {
			select {
			case cur.frames <- frame:
			case <-cur.ctx.Done():
				logrus.Debug("playq: call ended mid-sound")
				break frameLoop
			case <-ctx.Done():
				logrus.Debug("playq: exiting")
				return
			}
		}
		leaveTimer.Reset(time.Second)
	}
}
