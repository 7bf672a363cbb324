// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"flag"
	"fmt"

	"github.com/devblok/vkframe/core"
	"github.com/devblok/vkframe/gfx/vkr"
	log "github.com/sirupsen/logrus"
)

func main() {
	debug := flag.Bool("debug", false, "enable the validation layer")
	indent := flag.Bool("indent", false, "indent the output")
	flag.Parse()

	cfg := core.InstanceConfiguration{
		DebugMode:  *debug,
		Extensions: []string{},
		Layers:     []string{},
	}

	instance, err := vkr.NewInstance(vkr.DefaultApplicationInfo, nil, cfg)
	if err != nil {
		log.WithError(err).Fatal("create vulkan instance")
	}
	defer instance.Destroy()

	var bytes []byte
	if *indent {
		bytes, err = json.MarshalIndent(instance.PhysicalDevicesInfo(), "", "  ")
	} else {
		bytes, err = json.Marshal(instance.PhysicalDevicesInfo())
	}
	if err != nil {
		log.WithError(err).Fatal("encode device info")
	}
	fmt.Printf("%s\n", bytes)
}
