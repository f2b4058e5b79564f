// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package logger

import "fmt"

// Channel identifies a notifying peer. Channel numbers are fixed by
// configuration.
type Channel uint32

// Tag is the text appended to the buffer for one notification.
type Tag string

const (
	TagClient     Tag = "client"
	TagServer     Tag = "server"
	TagCrasher    Tag = "crasher"
	TagUnexpected Tag = "unexpected"
)

// Default channel numbers.
const (
	ClientChannel  Channel = 0
	ServerChannel  Channel = 1
	CrasherChannel Channel = 2
)

// ChannelMap assigns tags to channels. Channels absent from the map
// are tagged TagUnexpected.
type ChannelMap map[Channel]Tag

// DefaultChannels is the client/server/crasher assignment.
func DefaultChannels() ChannelMap {
	return ChannelMap{
		ClientChannel:  TagClient,
		ServerChannel:  TagServer,
		CrasherChannel: TagCrasher,
	}
}

// Tag returns the tag for source.
func (m ChannelMap) Tag(source Channel) Tag {
	if tag, ok := m[source]; ok {
		return tag
	}
	return TagUnexpected
}

// ChannelFor returns the channel carrying tag.
func (m ChannelMap) ChannelFor(tag Tag) (Channel, error) {
	for channel, candidate := range m {
		if candidate == tag {
			return channel, nil
		}
	}
	return 0, fmt.Errorf("no channel is assigned tag %q", tag)
}

// Validate rejects a map that assigns TagUnexpected, an empty tag, or
// the same tag to two channels.
func (m ChannelMap) Validate() error {
	seen := make(map[Tag]Channel, len(m))
	for channel, tag := range m {
		switch {
		case tag == "":
			return fmt.Errorf("channel %d: empty tag", channel)
		case tag == TagUnexpected:
			return fmt.Errorf("channel %d: tag %q is reserved", channel, tag)
		}
		if other, duplicate := seen[tag]; duplicate {
			return fmt.Errorf("tag %q assigned to channels %d and %d", tag, other, channel)
		}
		seen[tag] = channel
	}
	return nil
}
