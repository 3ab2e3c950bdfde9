package mqttc

// processPublishQueue drains queued publishes while the in-flight cap allows.
// Assumes the session lock is held.
func (c *Client) processPublishQueue() {
	if len(c.publishQueue) == 0 {
		return
	}

	if c.opts.MaxInflight > 0 {
		// Process queue while we have capacity
		for len(c.publishQueue) > 0 && c.inFlightCount < c.opts.MaxInflight {
			req := c.publishQueue[0]

			if !c.sendPublishLocked(req) {
				// Failed to send (queue full), stop processing
				return
			}

			c.publishQueue = c.publishQueue[1:]
		}
	} else {
		// No limit? Flush everything.
		for len(c.publishQueue) > 0 {
			req := c.publishQueue[0]

			if !c.sendPublishLocked(req) {
				return
			}

			c.publishQueue = c.publishQueue[1:]
		}
	}
}
