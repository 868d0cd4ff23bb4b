package main

import (
	"fmt"
	"os"
)

// consoleEvents renders the client core's structured events for an
// interactive terminal. All formatting lives here; the client package
// stays display-agnostic.
type consoleEvents struct{}

func (consoleEvents) Subscribed(topic string) {
	fmt.Printf("subscribed to %q\n", topic)
}

func (consoleEvents) Acknowledged(topic string) {
	fmt.Printf("ack: %q\n", topic)
}

func (consoleEvents) Received(topic string, payload []byte) {
	fmt.Printf("[%s] %s\n", topic, payload)
}

func (consoleEvents) Warning(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: %s: %v\n", msg, err)
		return
	}
	fmt.Fprintf(os.Stderr, "warning: %s\n", msg)
}

func (consoleEvents) Disconnected(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "disconnected: %v\n", err)
		return
	}
	fmt.Println("disconnected")
}
