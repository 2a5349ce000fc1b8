package ratelimit

import (
	"fmt"
	"strings"
)

// Class groups gossip topics that share a rate quota.
type Class int

const (
	// ClassBlock covers block proposals.
	ClassBlock Class = iota
	// ClassTransaction covers transaction announcements.
	ClassTransaction
	// ClassState covers state snapshots and state requests.
	ClassState
	// ClassCredential covers carbon credentials.
	ClassCredential
)

var classNames = map[Class]string{
	ClassBlock:       "blocks",
	ClassTransaction: "transactions",
	ClassState:       "state_updates",
	ClassCredential:  "credentials",
}

// Classes returns every class, in topic subscription order.
func Classes() []Class {
	return []Class{ClassBlock, ClassTransaction, ClassState, ClassCredential}
}

// String returns the topic suffix of the class.
func (c Class) String() string {
	if n, ok := classNames[c]; ok {
		return n
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// ParseClass is the inverse of String.
func ParseClass(name string) (Class, bool) {
	for c, n := range classNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Topic returns the namespaced topic name "/{network}/{prefix}/{class}".
func Topic(network, prefix string, c Class) string {
	return fmt.Sprintf("/%s/%s/%s", network, prefix, c)
}

// ClassifyTopic derives the class of a topic from its last path segment. The
// boolean is false for topics that do not name a known class.
func ClassifyTopic(topic string) (Class, bool) {
	name := topic
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		name = topic[i+1:]
	}
	return ParseClass(name)
}
