package notifications

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/designdrop-backend/pkg/enums"
)

// PreorderConfirmationData is the payload of a PREORDER_CONFIRMATION notification.
type PreorderConfirmationData struct {
	DesignID    uuid.UUID       `json:"design_id"`
	DesignTitle string          `json:"design_title"`
	PreOrderID  uuid.UUID       `json:"pre_order_id"`
	Quantity    int             `json:"quantity"`
	Size        string          `json:"size"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
}

// TierAchievedData is the payload of a TIER_ACHIEVED notification.
type TierAchievedData struct {
	DesignID          uuid.UUID       `json:"design_id"`
	DesignTitle       string          `json:"design_title"`
	Tier              int             `json:"tier"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	ConfirmedQuantity int             `json:"confirmed_quantity"`
}

// RefundIssuedData is the payload of a REFUND_ISSUED notification.
type RefundIssuedData struct {
	DesignID    uuid.UUID          `json:"design_id"`
	DesignTitle string             `json:"design_title"`
	PreOrderID  uuid.UUID          `json:"pre_order_id"`
	Amount      decimal.Decimal    `json:"amount"`
	Reason      enums.CreditReason `json:"reason"`
}

// PayoutSentData is the payload of a PAYOUT_SENT notification.
type PayoutSentData struct {
	PayoutID uuid.UUID       `json:"payout_id"`
	DesignID uuid.UUID       `json:"design_id"`
	Amount   decimal.Decimal `json:"amount"`
	Quarter  string          `json:"quarter"`
}

// Render turns a template and its payload into the stored title and message.
func Render(template enums.NotificationTemplate, data json.RawMessage) (string, string, error) {
	switch template {
	case enums.NotificationPreorderConfirmation:
		var d PreorderConfirmationData
		if err := decode(data, &d); err != nil {
			return "", "", err
		}
		return "Pre-order confirmed",
			fmt.Sprintf("Your pre-order of %d x %s (%s) is confirmed at $%s each, $%s total.",
				d.Quantity, titleOrDefault(d.DesignTitle), d.Size, d.UnitPrice.StringFixed(2), d.AmountPaid.StringFixed(2)), nil
	case enums.NotificationTierAchieved:
		var d TierAchievedData
		if err := decode(data, &d); err != nil {
			return "", "", err
		}
		return fmt.Sprintf("Tier %d unlocked", d.Tier),
			fmt.Sprintf("%s reached %d pre-orders. The price is now $%s.",
				titleOrDefault(d.DesignTitle), d.ConfirmedQuantity, d.UnitPrice.StringFixed(2)), nil
	case enums.NotificationRefundIssued:
		var d RefundIssuedData
		if err := decode(data, &d); err != nil {
			return "", "", err
		}
		return "Store credit issued",
			fmt.Sprintf("$%s of store credit was added to your account for %s.",
				d.Amount.StringFixed(2), titleOrDefault(d.DesignTitle)), nil
	case enums.NotificationPayoutSent:
		var d PayoutSentData
		if err := decode(data, &d); err != nil {
			return "", "", err
		}
		return "Royalty payout sent",
			fmt.Sprintf("Your royalty payout of $%s for %s has been sent.", d.Amount.StringFixed(2), d.Quarter), nil
	default:
		return "", "", fmt.Errorf("unknown notification template %q", template)
	}
}

func decode(data json.RawMessage, dest any) error {
	if len(data) == 0 {
		return fmt.Errorf("notification data missing")
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode notification data: %w", err)
	}
	return nil
}

func titleOrDefault(title string) string {
	if title == "" {
		return "your design"
	}
	return title
}
