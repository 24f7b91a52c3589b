package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/jackc/pgx"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"foghorn/audio"
)

var (
	queueCh = make(chan queuedSound, 10)
	params  = audio.Default
	db      *pgx.ConnPool
)

func main() {
	godotenv.Load()
	if os.Getenv("DEBUG") != "" {
		logrus.SetLevel(logrus.DebugLevel)
	}
	token := os.Getenv("TOKEN")
	if token == "" {
		logrus.Fatal("TOKEN is required")
	}
	cfg, err := pgx.ParseEnvLibpq()
	if err != nil {
		logrus.WithError(err).Fatal("reading libpq environment")
	}
	db, err = pgx.NewConnPool(pgx.ConnPoolConfig{ConnConfig: cfg})
	if err != nil {
		logrus.WithError(err).Fatal("connecting to sound library")
	}

	dc, err := discordgo.New(token)
	if err != nil {
		logrus.WithError(err).Fatal("creating session")
	}
	dc.AddHandler(onReady)
	dc.AddHandler(onMessage)
	if err := dc.Open(); err != nil {
		logrus.WithError(err).Fatal("opening gateway")
	}
	ctx, cancel := context.WithCancel(context.Background())
	go playQueued(ctx, dc)

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt)
	<-ch
	cancel()
	dc.Close()
}

func onReady(s *discordgo.Session, event *discordgo.Ready) {
	status := os.Getenv("STATUS")
	if status == "" {
		return
	}
	s.UpdateGameStatus(0, status)
}

func onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	parts := strings.Fields(m.ContentWithMentionsReplaced())
	if len(parts) < 2 || parts[0] != "!play" {
		return
	}
	channel := voiceChannelForUser(s, m)
	if channel == nil {
		return
	}
	request := strings.Join(parts[1:], " ")
	go func() {
		name, url, err := lookupSound(request)
		if err != nil {
			logrus.WithError(err).WithField("request", request).Warn("no sound matched")
			return
		}
		frames, err := fetchFrames(name, url)
		if err != nil {
			logrus.WithError(err).WithField("sound", name).Error("could not fetch sound")
			return
		}
		select {
		case queueCh <- queuedSound{channel: channel, frames: frames, name: name}:
		default:
			logrus.Warn("play queue overflowed")
		}
	}()
}

// voiceChannelForUser finds the voice channel the message author currently
// occupies, if any.
func voiceChannelForUser(s *discordgo.Session, m *discordgo.MessageCreate) *discordgo.Channel {
	channel, _ := s.State.Channel(m.ChannelID)
	if channel == nil {
		logrus.WithField("channel", m.ChannelID).Warn("failed to look up channel")
		return nil
	}
	guild, _ := s.State.Guild(channel.GuildID)
	if guild == nil {
		logrus.WithField("guild", channel.GuildID).Warn("failed to look up guild")
		return nil
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == m.Author.ID {
			if vc, _ := s.State.Channel(vs.ChannelID); vc != nil {
				return vc
			}
		}
	}
	logrus.WithField("user", m.Author.ID).Debug("user is not in a voice channel")
	return nil
}
