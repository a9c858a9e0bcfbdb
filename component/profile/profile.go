package profile

import (
	"go.uber.org/atomic"
)

// StoreFilterText is a global switch for storing the rule filter text to file
var StoreFilterText = atomic.NewBool(true)
