package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/teamcal/teamcal/internal/logger"
	"github.com/teamcal/teamcal/internal/rabbit"
	"github.com/teamcal/teamcal/internal/storage"
	"github.com/teamcal/teamcal/internal/storagebuilder"
)

var configFile string

func newMessage(event storage.Event) rabbit.Message {
	return rabbit.Message{
		EventID:   event.ID,
		Title:     event.Title,
		StartTime: event.StartTime,
		Timezone:  event.Timezone,
		Profiles:  event.Profiles,
	}
}

func init() {
	flag.StringVar(&configFile, "config", "./configs/scheduler_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to connect to rabbit: %v", err)
		return
	}
	defer r.Close()

	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		stor.Close(ctx)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	// Advancing window over event start times: each tick covers
	// [last+lead, now+lead), so every event is announced once, lead time
	// before it starts.
	lead := config.Scheduler.Lead
	startTime := time.Now().Add(lead - config.Scheduler.Interval)
	endTime := time.Now().Add(lead)
	ticker := time.NewTicker(config.Scheduler.Interval)
	defer ticker.Stop()
	for {
		log.Debugf("get events starting between %s and %s", startTime, endTime)
		events, err := stor.ListEventsStartingBetween(ctx, startTime, endTime)
		if err != nil {
			log.Errorf("failed to get events: %s", err)
		}
		for _, event := range events {
			log.Debugf("publish reminder for event: %v", event.ID)
			m := newMessage(event)
			data, err := json.Marshal(m)
			if err != nil {
				log.Errorf("failed to encode reminder: %s", err)
				continue
			}
			if err := r.Publish(data); err != nil {
				log.Errorf("failed to publish reminder: %s", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			startTime = endTime
			endTime = time.Now().Add(lead)
		}
	}
}
