// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/vkframe/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DeviceContext is shared by every component that talks to the device.
// It is created once and passed by reference.
type DeviceContext struct {
	Device gfx.Device
	Log    *log.Entry

	// Sampler is the one sampler every texture binding uses.
	Sampler gfx.SamplerID
}

// NewDeviceContext checks the format and shader tables and creates the
// shared sampler. A nil logger means the standard logrus logger.
func NewDeviceContext(dev gfx.Device, logger *log.Logger) (*DeviceContext, error) {
	if err := gfx.ValidateTables(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.StandardLogger()
	}

	sampler, err := dev.CreateSampler()
	if err != nil {
		return nil, errors.Wrap(err, "create texture sampler")
	}
	return &DeviceContext{
		Device:  dev,
		Log:     log.NewEntry(logger),
		Sampler: sampler,
	}, nil
}

func (c *DeviceContext) logger(component string) *log.Entry {
	return c.Log.WithField("component", component)
}

// oneShot records commands into a temporary command buffer, submits it
// and waits for the queue to drain.
func (c *DeviceContext) oneShot(record func(cmd gfx.CommandBufferID)) error {
	cmd, err := c.Device.AllocateCommandBuffer()
	if err != nil {
		return errors.Wrap(err, "allocate one-shot command buffer")
	}
	defer c.Device.FreeCommandBuffer(cmd)

	if err := c.Device.BeginCommandBuffer(cmd, true); err != nil {
		return errors.Wrap(err, "begin one-shot command buffer")
	}
	record(cmd)
	if err := c.Device.EndCommandBuffer(cmd); err != nil {
		return errors.Wrap(err, "end one-shot command buffer")
	}
	if err := c.Device.QueueSubmit(gfx.SubmitInfo{CommandBuffer: cmd}); err != nil {
		return errors.Wrap(err, "submit one-shot command buffer")
	}
	return errors.Wrap(c.Device.QueueWaitIdle(), "wait for one-shot command buffer")
}

// WaitIdle blocks until the device finished all submitted work.
func (c *DeviceContext) WaitIdle() error {
	return errors.Wrap(c.Device.DeviceWaitIdle(), "wait for device idle")
}

// Destroy releases the shared sampler.
func (c *DeviceContext) Destroy() {
	if c.Sampler != 0 {
		c.Device.DestroySampler(c.Sampler)
		c.Sampler = 0
	}
}
