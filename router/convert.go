package router

import (
	"strconv"
	"strings"
)

// convert turns a raw token into the declared parameter type. The returned
// value is one of string, int64, float64 or bool; snowflakes stay strings.
func convert(token string, typ ParamType) (interface{}, bool) {
	switch typ {
	case String:
		return token, true
	case Int:
		n, err := strconv.ParseInt(token, 10, 64)
		if err != nil {
			return nil, false
		}
		return n, true
	case Float:
		f, err := strconv.ParseFloat(token, 64)
		if err != nil {
			return nil, false
		}
		return f, true
	case Bool:
		switch strings.ToLower(token) {
		case "true", "yes", "on", "1":
			return true, true
		case "false", "no", "off", "0":
			return false, true
		}
		return nil, false
	case Snowflake:
		id := unwrapMention(token)
		if id == "" {
			return nil, false
		}
		for _, r := range id {
			if r < '0' || r > '9' {
				return nil, false
			}
		}
		return id, true
	default:
		return nil, false
	}
}

// unwrapMention extracts the id from <@123>, <@!123>, <#123> and <@&123>
// forms, or returns the token unchanged when it is not a mention.
func unwrapMention(token string) string {
	if !strings.HasPrefix(token, "<") || !strings.HasSuffix(token, ">") {
		return token
	}
	inner := token[1 : len(token)-1]
	for _, prefix := range []string{"@!", "@&", "@", "#"} {
		if strings.HasPrefix(inner, prefix) {
			return inner[len(prefix):]
		}
	}
	return ""
}
