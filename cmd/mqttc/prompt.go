package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var stdin = bufio.NewReader(os.Stdin)

// promptString asks for a value on stdin, returning def when the user just
// presses enter.
func promptString(label, def string) string {
	if def != "" {
		fmt.Printf("%s [%s]: ", label, def)
	} else {
		fmt.Printf("%s: ", label)
	}

	line, err := stdin.ReadString('\n')
	if err != nil {
		return def
	}

	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

// promptQoS asks for a QoS level, keeping def when the user presses enter.
func promptQoS(def int) (int, error) {
	answer := promptString("qos (0, 1, 2)", strconv.Itoa(def))
	qos, err := strconv.Atoi(answer)
	if err != nil || qos < 0 || qos > 2 {
		return 0, fmt.Errorf("invalid qos %q: must be 0, 1 or 2", answer)
	}
	return qos, nil
}

// promptClientID asks for a client ID and appends the role suffix ("-sub" or
// "-pub") so a subscriber and publisher run from the same config never
// collide on the broker. An empty answer keeps the ID empty and lets the
// client generate one.
func promptClientID(suffix string) string {
	id := promptString("client ID (empty for generated)", "")
	if id == "" {
		return ""
	}
	if !strings.HasSuffix(id, suffix) {
		id += suffix
	}
	return id
}
