package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-kit/log/level"

	"github.com/example/telemetry-sdk/internal/crash"
	"github.com/example/telemetry-sdk/internal/device"
	"github.com/example/telemetry-sdk/internal/events"
	"github.com/example/telemetry-sdk/internal/request"
)

// Event is a custom event. Count defaults to 1.
type Event = events.Event

// CrashReport describes a crash or handled error.
type CrashReport = crash.Report

// PushMode selects the push environment a token is registered for.
type PushMode = events.PushMode

const (
	PushProduction  = events.PushProduction
	PushDevelopment = events.PushDevelopment
	PushAdHoc       = events.PushAdHoc
)

// UserDetails are the user profile fields: name, username, email,
// organization, phone, picture, gender, byear and a custom map.
type UserDetails map[string]any

// RecordEvent records one or more custom events.
func (c *Client) RecordEvent(ctx context.Context, evs ...Event) error {
	payload, err := events.Payload(evs...)
	if err != nil {
		return err
	}
	return c.submit(ctx, payload)
}

// StartEvent starts timing the event key.
func (c *Client) StartEvent(key string) error {
	return c.timer.Start(key)
}

// EndEvent stops timing key and records it with its duration. It returns
// events.ErrUnknownEvent when key was never started.
func (c *Client) EndEvent(ctx context.Context, key string) error {
	ev, err := c.timer.End(key)
	if err != nil {
		return err
	}
	return c.RecordEvent(ctx, ev)
}

// RecordView records that the user opened the screen name.
func (c *Client) RecordView(ctx context.Context, name string) error {
	return c.RecordEvent(ctx, events.View(name, c.platform()))
}

// SetUserData reports the user profile.
func (c *Client) SetUserData(ctx context.Context, details UserDetails) error {
	return c.submit(ctx, request.Payload{"user_details": map[string]any(details)})
}

// ChangeDeviceID switches to a new device id and tells the collector to
// merge the old id's data into it.
func (c *Client) ChangeDeviceID(ctx context.Context, deviceID string) error {
	c.mu.RLock()
	identity := c.identity
	c.mu.RUnlock()
	if identity == nil {
		return ErrNotInitialized
	}

	old, err := identity.Change(ctx, deviceID)
	if err != nil {
		return fmt.Errorf("change device id: %w", err)
	}
	if old == identity.ID() {
		return nil
	}
	level.Info(c.logger).Log("msg", "device id changed", "old", old, "new", identity.ID())
	return c.submit(ctx, request.Payload{"old_device_id": old})
}

// SetLocation reports the device coordinates.
func (c *Client) SetLocation(ctx context.Context, latitude, longitude float64) error {
	loc := strconv.FormatFloat(latitude, 'f', -1, 64) + "," + strconv.FormatFloat(longitude, 'f', -1, 64)
	return c.submit(ctx, request.Payload{"location": loc})
}

// SetOptionalParameters reports country, city and location hints. Empty
// values are omitted.
func (c *Client) SetOptionalParameters(ctx context.Context, countryCode, city, location string) error {
	payload := request.Payload{}
	if countryCode != "" {
		payload["country_code"] = countryCode
	}
	if city != "" {
		payload["city"] = city
	}
	if location != "" {
		payload["location"] = location
	}
	if len(payload) == 0 {
		return nil
	}
	return c.submit(ctx, payload)
}

// RegisterPush registers a push token for this device.
func (c *Client) RegisterPush(ctx context.Context, token string, mode PushMode) error {
	return c.submit(ctx, events.PushToken(c.platform(), token, mode))
}

// OpenPush records that the notification messageID was opened.
func (c *Client) OpenPush(ctx context.Context, messageID string) error {
	return c.RecordEvent(ctx, events.PushOpen(messageID))
}

// ActionPush records that a notification action button was pressed.
func (c *Client) ActionPush(ctx context.Context, messageID string, button int) error {
	return c.RecordEvent(ctx, events.PushAction(messageID, button))
}

// SentPush records that the notification messageID reached the device.
func (c *Client) SentPush(ctx context.Context, messageID string) error {
	return c.RecordEvent(ctx, events.PushSent(messageID))
}

// RecordCrash reports a crash or handled error.
func (c *Client) RecordCrash(ctx context.Context, report CrashReport) error {
	c.mu.RLock()
	report.Background = report.Background || c.background
	c.mu.RUnlock()
	return c.submit(ctx, crash.Payload(report, c.props, c.startedAt, c.now()))
}

// RecordError reports err as a crash with the current stack.
func (c *Client) RecordError(ctx context.Context, err error, nonFatal bool) error {
	return c.RecordCrash(ctx, crash.FromError(err, nonFatal))
}

func (c *Client) platform() string {
	return c.props.Metrics()[device.KeyOS]
}
