package payment

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"saas-payments/internal/domain"
)

// Request tokens carry {accountID, planID} across providers whose metadata
// channel may silently drop structured data. The token is self-issued at
// session creation and echoed back verbatim by the provider; parsing it is
// the required fallback path when structured metadata is absent.
//
// Format: accountID_planID_unixSeconds. Account ids are UUIDs and never
// contain underscores; plan ids may, so the token is split from both ends.

func EncodeRequestToken(accountID, planID string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%d", accountID, planID, now.Unix())
}

func ParseRequestToken(token string) (accountID, planID string, err error) {
	first := strings.Index(token, "_")
	last := strings.LastIndex(token, "_")
	if first < 1 || last <= first+1 || last == len(token)-1 {
		return "", "", domain.ErrInvalidArgument
	}
	if _, err := strconv.ParseInt(token[last+1:], 10, 64); err != nil {
		return "", "", domain.ErrInvalidArgument
	}
	accountID = token[:first]
	planID = token[first+1 : last]
	if strings.Contains(accountID, " ") || planID == "" {
		return "", "", domain.ErrInvalidArgument
	}
	return accountID, planID, nil
}
