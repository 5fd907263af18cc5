/*
NAME
  variables.go

AUTHORS
  Rowan Ellery <rowan@skywatchcam.io>

LICENSE
  Copyright (C) 2026 the SkyWatch developers.

  SkyWatch is free software: you can redistribute it and/or modify it under
  the terms of the GNU General Public License as published by the Free
  Software Foundation, either version 3 of the License, or (at your option)
  any later version.
*/

package config

import (
	"strconv"
)

// Config map keys.
const (
	KeyCameraURL          = "CameraURL"
	KeyWidth              = "Width"
	KeyHeight             = "Height"
	KeyCameraBackoff      = "CameraBackoff"
	KeyCameraBackoffMax   = "CameraBackoffMax"
	KeyCameraMaxFailures  = "CameraMaxFailures"
	KeyStoragePath        = "StoragePath"
	KeyRetentionDays      = "RetentionDays"
	KeyTimelapseEnabled   = "TimelapseEnabled"
	KeyTimelapseInterval  = "TimelapseInterval"
	KeyDailyVideo         = "DailyVideo"
	KeyJPEGQuality        = "JPEGQuality"
	KeySolarEnabled       = "SolarEnabled"
	KeySolarInterval      = "SolarInterval"
	KeySolarBrightness    = "SolarBrightness"
	KeySolarMinRadius     = "SolarMinRadius"
	KeySolarMaxRadius     = "SolarMaxRadius"
	KeySolarDaytimeOnly   = "SolarDaytimeOnly"
	KeyLatitude           = "Latitude"
	KeyLongitude          = "Longitude"
	KeyLunarEnabled       = "LunarEnabled"
	KeyLunarInterval      = "LunarInterval"
	KeyLunarBrightness    = "LunarBrightness"
	KeyLunarMinRadius     = "LunarMinRadius"
	KeyLunarMaxRadius     = "LunarMaxRadius"
	KeyLunarNighttimeOnly = "LunarNighttimeOnly"
	KeyMotionEnabled      = "MotionEnabled"
	KeyMotionSensitivity  = "MotionSensitivity"
	KeyMotionMinArea      = "MotionMinArea"
	KeyMotionBurstCount   = "MotionBurstCount"
	KeyMotionBurstFPS     = "MotionBurstFPS"
	KeyMotionCooldown     = "MotionCooldown"
	KeyMotionDownscaling  = "MotionDownscaling"
	KeyHTTPAddress        = "HTTPAddress"
	KeyJPEGQualityLive    = "JPEGQualityLive"
	KeyMaxFrameQueue      = "MaxFrameQueue"
	KeyMQTTEnabled        = "MQTTEnabled"
	KeyMQTTBroker         = "MQTTBroker"
	KeyMQTTTopic          = "MQTTTopic"
	KeyLogLevel           = "LogLevel"
)

// Variable describes a recognised configuration variable and how a string
// value from the settings boundary is applied to the Config.
type Variable struct {
	Name   string
	Update func(*Config, string)
}

// Variables defines the recognised variables and their update behaviour.
// Validation happens separately through the Validate methods; Update only
// parses and assigns.
var Variables = []Variable{
	{Name: KeyCameraURL, Update: func(c *Config, v string) { c.CameraURL = v }},
	{Name: KeyWidth, Update: func(c *Config, v string) { c.Width = parseUint(KeyWidth, v, c) }},
	{Name: KeyHeight, Update: func(c *Config, v string) { c.Height = parseUint(KeyHeight, v, c) }},
	{Name: KeyCameraBackoff, Update: func(c *Config, v string) { c.CameraBackoff = parseUint(KeyCameraBackoff, v, c) }},
	{Name: KeyCameraBackoffMax, Update: func(c *Config, v string) { c.CameraBackoffMax = parseUint(KeyCameraBackoffMax, v, c) }},
	{Name: KeyCameraMaxFailures, Update: func(c *Config, v string) { c.CameraMaxFailures = parseUint(KeyCameraMaxFailures, v, c) }},
	{Name: KeyStoragePath, Update: func(c *Config, v string) { c.StoragePath = v }},
	{Name: KeyRetentionDays, Update: func(c *Config, v string) { c.RetentionDays = parseUint(KeyRetentionDays, v, c) }},
	{Name: KeyTimelapseEnabled, Update: func(c *Config, v string) { c.TimelapseEnabled = parseBool(KeyTimelapseEnabled, v, c) }},
	{Name: KeyTimelapseInterval, Update: func(c *Config, v string) { c.TimelapseInterval = parseUint(KeyTimelapseInterval, v, c) }},
	{Name: KeyDailyVideo, Update: func(c *Config, v string) { c.DailyVideo = parseBool(KeyDailyVideo, v, c) }},
	{Name: KeyJPEGQuality, Update: func(c *Config, v string) { c.JPEGQuality = parseInt(KeyJPEGQuality, v, c) }},
	{Name: KeySolarEnabled, Update: func(c *Config, v string) { c.SolarEnabled = parseBool(KeySolarEnabled, v, c) }},
	{Name: KeySolarInterval, Update: func(c *Config, v string) { c.SolarInterval = parseUint(KeySolarInterval, v, c) }},
	{Name: KeySolarBrightness, Update: func(c *Config, v string) { c.SolarBrightness = parseUint(KeySolarBrightness, v, c) }},
	{Name: KeySolarMinRadius, Update: func(c *Config, v string) { c.SolarMinRadius = parseUint(KeySolarMinRadius, v, c) }},
	{Name: KeySolarMaxRadius, Update: func(c *Config, v string) { c.SolarMaxRadius = parseUint(KeySolarMaxRadius, v, c) }},
	{Name: KeySolarDaytimeOnly, Update: func(c *Config, v string) { c.SolarDaytimeOnly = parseBool(KeySolarDaytimeOnly, v, c) }},
	{Name: KeyLatitude, Update: func(c *Config, v string) { c.Latitude = parseFloat(KeyLatitude, v, c) }},
	{Name: KeyLongitude, Update: func(c *Config, v string) { c.Longitude = parseFloat(KeyLongitude, v, c) }},
	{Name: KeyLunarEnabled, Update: func(c *Config, v string) { c.LunarEnabled = parseBool(KeyLunarEnabled, v, c) }},
	{Name: KeyLunarInterval, Update: func(c *Config, v string) { c.LunarInterval = parseUint(KeyLunarInterval, v, c) }},
	{Name: KeyLunarBrightness, Update: func(c *Config, v string) { c.LunarBrightness = parseUint(KeyLunarBrightness, v, c) }},
	{Name: KeyLunarMinRadius, Update: func(c *Config, v string) { c.LunarMinRadius = parseUint(KeyLunarMinRadius, v, c) }},
	{Name: KeyLunarMaxRadius, Update: func(c *Config, v string) { c.LunarMaxRadius = parseUint(KeyLunarMaxRadius, v, c) }},
	{Name: KeyLunarNighttimeOnly, Update: func(c *Config, v string) { c.LunarNighttimeOnly = parseBool(KeyLunarNighttimeOnly, v, c) }},
	{Name: KeyMotionEnabled, Update: func(c *Config, v string) { c.MotionEnabled = parseBool(KeyMotionEnabled, v, c) }},
	{Name: KeyMotionSensitivity, Update: func(c *Config, v string) { c.MotionSensitivity = parseUint(KeyMotionSensitivity, v, c) }},
	{Name: KeyMotionMinArea, Update: func(c *Config, v string) { c.MotionMinArea = parseUint(KeyMotionMinArea, v, c) }},
	{Name: KeyMotionBurstCount, Update: func(c *Config, v string) { c.MotionBurstCount = parseUint(KeyMotionBurstCount, v, c) }},
	{Name: KeyMotionBurstFPS, Update: func(c *Config, v string) { c.MotionBurstFPS = parseUint(KeyMotionBurstFPS, v, c) }},
	{Name: KeyMotionCooldown, Update: func(c *Config, v string) { c.MotionCooldown = parseUint(KeyMotionCooldown, v, c) }},
	{Name: KeyMotionDownscaling, Update: func(c *Config, v string) { c.MotionDownscaling = parseUint(KeyMotionDownscaling, v, c) }},
	{Name: KeyHTTPAddress, Update: func(c *Config, v string) { c.HTTPAddress = v }},
	{Name: KeyJPEGQualityLive, Update: func(c *Config, v string) { c.JPEGQualityLive = parseInt(KeyJPEGQualityLive, v, c) }},
	{Name: KeyMaxFrameQueue, Update: func(c *Config, v string) { c.MaxFrameQueue = parseUint(KeyMaxFrameQueue, v, c) }},
	{Name: KeyMQTTEnabled, Update: func(c *Config, v string) { c.MQTTEnabled = parseBool(KeyMQTTEnabled, v, c) }},
	{Name: KeyMQTTBroker, Update: func(c *Config, v string) { c.MQTTBroker = v }},
	{Name: KeyMQTTTopic, Update: func(c *Config, v string) { c.MQTTTopic = v }},
	{Name: KeyLogLevel, Update: func(c *Config, v string) { c.LogLevel = int8(parseInt(KeyLogLevel, v, c)) }},
}

// Update takes a map of configuration variable names and their corresponding
// values, parses the string values into the correct type, and sets the
// config struct fields as appropriate. Unrecognised names are ignored.
func (c *Config) Update(vars map[string]string) {
	for _, value := range Variables {
		if v, ok := vars[value.Name]; ok && value.Update != nil {
			value.Update(c, v)
		}
	}
}

func parseUint(n, v string, c *Config) uint {
	p, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		c.LogInvalidField(n, "ignored")
		return 0
	}
	return uint(p)
}

func parseInt(n, v string, c *Config) int {
	p, err := strconv.Atoi(v)
	if err != nil {
		c.LogInvalidField(n, "ignored")
		return 0
	}
	return p
}

func parseBool(n, v string, c *Config) (b bool) {
	switch v {
	case "true", "1":
		b = true
	case "false", "0":
	default:
		c.LogInvalidField(n, "ignored")
	}
	return
}

func parseFloat(n, v string, c *Config) float64 {
	p, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.LogInvalidField(n, "ignored")
		return 0
	}
	return p
}
