package main

import (
	"bytes"
	"context"
	"encoding/gob"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"foghorn/audio"
)

var cli = &http.Client{
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          1,
		IdleConnTimeout:       10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
	},
}

func grab(url string) ([]byte, error) {
	logrus.WithField("url", url).Info("fetching")
	resp, err := cli.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("HTTP %s fetching %s", resp.Status, resp.Request.URL)
	}
	return io.ReadAll(resp.Body)
}

// fetchFrames returns the opus frames for a sound, transcoding and caching
// on first use.
func fetchFrames(name, url string) ([][]byte, error) {
	cachePath := filepath.Join("cache", name+".opus")
	f, err := os.Open(cachePath)
	if err == nil {
		defer f.Close()
		var frames [][]byte
		if err := gob.NewDecoder(f).Decode(&frames); err != nil {
			return nil, errors.Wrap(err, "reading cached sound")
		}
		return frames, nil
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	raw, err := grab(url)
	if err != nil {
		return nil, err
	}

	var frames [][]byte
	ch := make(chan []byte)
	done := make(chan struct{})
	go func() {
		for frame := range ch {
			frames = append(frames, frame)
		}
		close(done)
	}()
	err = audio.EncodeStream(context.Background(), ch, bytes.NewReader(raw), params)
	close(ch)
	<-done
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cachePath), 0755); err != nil {
		return nil, err
	}
	f, err = os.Create(cachePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(frames); err != nil {
		return nil, errors.Wrap(err, "writing sound cache")
	}
	return frames, nil
}
