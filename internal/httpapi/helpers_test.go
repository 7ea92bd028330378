package httpapi

import (
	"strconv"

	"github.com/MrEthical07/goContacts/internal/logging"
)

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func nopLog() logging.Logger {
	return logging.NewNop()
}
