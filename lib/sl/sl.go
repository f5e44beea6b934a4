package sl

import (
	"fmt"
	"log/slog"
)

func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

func Module(mod string) slog.Attr {
	return slog.Attr{
		Key:   "mod",
		Value: slog.StringValue(mod),
	}
}

// Secret returns a string with the first 5 characters of the input string,
// used to hide access tokens and keys in logs
func Secret(key, value string) slog.Attr {
	r := "***"
	if len(value) > 5 {
		r = fmt.Sprintf("%s***", value[0:5])
	}
	if value == "" {
		r = "?"
	}
	return slog.Attr{
		Key:   key,
		Value: slog.StringValue(r),
	}
}

// GiveawayId tags log records with the giveaway the operation concerns.
func GiveawayId(id int64) slog.Attr {
	return slog.Attr{
		Key:   "giveaway_id",
		Value: slog.Int64Value(id),
	}
}
