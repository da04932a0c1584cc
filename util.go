package growthbook

import "time"

// Allows for overriding in tests.
var now = time.Now
