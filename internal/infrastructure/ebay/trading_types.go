package ebay

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/sellerlink/gateway/internal/domain/marketplace"
	"github.com/shopspring/decimal"
)

// tradingError is one <Errors> element of a Trading response
type tradingError struct {
	ShortMessage        string `xml:"ShortMessage"`
	LongMessage         string `xml:"LongMessage"`
	ErrorCode           string `xml:"ErrorCode"`
	SeverityCode        string `xml:"SeverityCode"`
	ErrorClassification string `xml:"ErrorClassification"`
}

// tradingAck is embedded by every Trading response
type tradingAck struct {
	Ack    string         `xml:"Ack"`
	Errors []tradingError `xml:"Errors"`
}

func (a *tradingAck) ack() *tradingAck { return a }

// succeeded reports whether the call was accepted. Warnings are success.
func (a *tradingAck) succeeded() bool {
	return a.Ack == "Success" || a.Ack == "Warning"
}

// firstError returns the first error of severity Error, or the first entry
func (a *tradingAck) firstError() (tradingError, bool) {
	for _, e := range a.Errors {
		if e.SeverityCode == "" || e.SeverityCode == "Error" {
			return e, true
		}
	}
	if len(a.Errors) > 0 {
		return a.Errors[0], true
	}
	return tradingError{}, false
}

type tradingResponse interface {
	ack() *tradingAck
}

// tradingAmount is a Trading money element, e.g. <Total currencyID="USD">1.00</Total>
type tradingAmount struct {
	Value      string `xml:",chardata"`
	CurrencyID string `xml:"currencyID,attr"`
}

func (a tradingAmount) toMoney() *marketplace.Money {
	if strings.TrimSpace(a.Value) == "" {
		return nil
	}
	v, err := decimal.NewFromString(strings.TrimSpace(a.Value))
	if err != nil {
		return nil
	}
	return &marketplace.Money{Value: v, Currency: a.CurrencyID}
}

type getItemRequest struct {
	XMLName     xml.Name `xml:"urn:ebay:apis:eBLBaseComponents GetItemRequest"`
	ItemID      string   `xml:"ItemID,omitempty"`
	SKU         string   `xml:"SKU,omitempty"`
	DetailLevel string   `xml:"DetailLevel"`
}

type getItemResponse struct {
	XMLName xml.Name `xml:"GetItemResponse"`
	tradingAck
	Item tradingItem `xml:"Item"`
}

type tradingItem struct {
	ItemID               string `xml:"ItemID"`
	SKU                  string `xml:"SKU"`
	Title                string `xml:"Title"`
	Quantity             int    `xml:"Quantity"`
	ConditionDisplayName string `xml:"ConditionDisplayName"`
	SellingStatus        struct {
		CurrentPrice tradingAmount `xml:"CurrentPrice"`
		QuantitySold int           `xml:"QuantitySold"`
	} `xml:"SellingStatus"`
}

func (i *tradingItem) toItem(raw []byte) *marketplace.Item {
	available := i.Quantity - i.SellingStatus.QuantitySold
	if available < 0 {
		available = 0
	}
	return &marketplace.Item{
		Record:    marketplace.Record{ID: i.ItemID, SourceAPI: marketplace.SourceLegacy, Raw: raw},
		SKU:       i.SKU,
		ItemID:    i.ItemID,
		Title:     i.Title,
		Quantity:  available,
		Condition: i.ConditionDisplayName,
		Price:     i.SellingStatus.CurrentPrice.toMoney(),
	}
}

type getOrdersRequest struct {
	XMLName      xml.Name `xml:"urn:ebay:apis:eBLBaseComponents GetOrdersRequest"`
	OrderIDArray struct {
		OrderID []string `xml:"OrderID"`
	} `xml:"OrderIDArray"`
	DetailLevel string `xml:"DetailLevel"`
}

type getOrdersResponse struct {
	XMLName xml.Name `xml:"GetOrdersResponse"`
	tradingAck
	OrderArray struct {
		Orders []tradingOrder `xml:"Order"`
	} `xml:"OrderArray"`
}

type tradingTransaction struct {
	OrderLineItemID   string `xml:"OrderLineItemID"`
	TransactionID     string `xml:"TransactionID"`
	QuantityPurchased int    `xml:"QuantityPurchased"`
	Item              struct {
		ItemID string `xml:"ItemID"`
		SKU    string `xml:"SKU"`
		Title  string `xml:"Title"`
	} `xml:"Item"`
	TransactionPrice tradingAmount `xml:"TransactionPrice"`
	ShippedTime      string        `xml:"ShippedTime"`
}

type tradingOrder struct {
	OrderID         string        `xml:"OrderID"`
	ExtendedOrderID string        `xml:"ExtendedOrderID"`
	OrderStatus     string        `xml:"OrderStatus"`
	BuyerUserID     string        `xml:"BuyerUserID"`
	CreatedTime     string        `xml:"CreatedTime"`
	ShippedTime     string        `xml:"ShippedTime"`
	Total           tradingAmount `xml:"Total"`
	CheckoutStatus  struct {
		Status string `xml:"Status"`
	} `xml:"CheckoutStatus"`
	TransactionArray struct {
		Transactions []tradingTransaction `xml:"Transaction"`
	} `xml:"TransactionArray"`
}

func (o *tradingOrder) toOrder(raw []byte) *marketplace.Order {
	order := &marketplace.Order{
		Record:        marketplace.Record{ID: o.OrderID, SourceAPI: marketplace.SourceLegacy, Raw: raw},
		LegacyOrderID: o.OrderID,
		BuyerUsername: o.BuyerUserID,
		PaymentStatus: o.CheckoutStatus.Status,
		Total:         o.Total.toMoney(),
		LineItems:     make([]marketplace.LineItem, 0, len(o.TransactionArray.Transactions)),
	}
	if t, err := time.Parse(time.RFC3339, o.CreatedTime); err == nil {
		order.CreatedAt = t
	}

	shipped := 0
	for _, tx := range o.TransactionArray.Transactions {
		fulfilled := o.ShippedTime != "" || tx.ShippedTime != ""
		if fulfilled {
			shipped++
		}
		lineID := tx.OrderLineItemID
		if lineID == "" {
			lineID = tx.Item.ItemID + "-" + tx.TransactionID
		}
		order.LineItems = append(order.LineItems, marketplace.LineItem{
			LineItemID:    lineID,
			LegacyItemID:  tx.Item.ItemID,
			TransactionID: tx.TransactionID,
			SKU:           tx.Item.SKU,
			Title:         tx.Item.Title,
			Quantity:      tx.QuantityPurchased,
			Fulfilled:     fulfilled,
			Total:         tx.TransactionPrice.toMoney(),
		})
	}

	switch {
	case len(order.LineItems) > 0 && shipped == len(order.LineItems):
		order.FulfillmentStatus = marketplace.FulfillmentFulfilled
	case shipped > 0:
		order.FulfillmentStatus = marketplace.FulfillmentInProgress
	default:
		order.FulfillmentStatus = marketplace.FulfillmentNotStarted
	}
	return order
}

type shipmentTrackingDetails struct {
	ShipmentTrackingNumber string `xml:"ShipmentTrackingNumber"`
	ShippingCarrierUsed    string `xml:"ShippingCarrierUsed"`
}

type completeSaleRequest struct {
	XMLName  xml.Name `xml:"urn:ebay:apis:eBLBaseComponents CompleteSaleRequest"`
	Shipped  bool     `xml:"Shipped"`
	Shipment struct {
		ShipmentTrackingDetails shipmentTrackingDetails `xml:"ShipmentTrackingDetails"`
		ShippedTime             string                  `xml:"ShippedTime,omitempty"`
	} `xml:"Shipment"`
	OrderLineItemID string `xml:"OrderLineItemID"`
}

type completeSaleResponse struct {
	XMLName xml.Name `xml:"CompleteSaleResponse"`
	tradingAck
}

type addMemberMessageRequest struct {
	XMLName       xml.Name `xml:"urn:ebay:apis:eBLBaseComponents AddMemberMessageAAQToPartnerRequest"`
	ItemID        string   `xml:"ItemID"`
	MemberMessage struct {
		Body         string `xml:"Body"`
		QuestionType string `xml:"QuestionType"`
		RecipientID  string `xml:"RecipientID"`
		Subject      string `xml:"Subject"`
	} `xml:"MemberMessage"`
}

type addMemberMessageResponse struct {
	XMLName xml.Name `xml:"AddMemberMessageAAQToPartnerResponse"`
	tradingAck
}

type tradingPagination struct {
	EntriesPerPage int `xml:"EntriesPerPage"`
	PageNumber     int `xml:"PageNumber"`
}

type getMemberMessagesRequest struct {
	XMLName         xml.Name          `xml:"urn:ebay:apis:eBLBaseComponents GetMemberMessagesRequest"`
	ItemID          string            `xml:"ItemID"`
	MailMessageType string            `xml:"MailMessageType"`
	Pagination      tradingPagination `xml:"Pagination"`
}

type memberMessageExchange struct {
	Item struct {
		ItemID string `xml:"ItemID"`
	} `xml:"Item"`
	Question struct {
		MessageID   string `xml:"MessageID"`
		SenderID    string `xml:"SenderID"`
		RecipientID string `xml:"RecipientID"`
		Subject     string `xml:"Subject"`
		Body        string `xml:"Body"`
		ParentID    string `xml:"ParentMessageID"`
	} `xml:"Question"`
	MessageStatus string `xml:"MessageStatus"`
	CreationDate  string `xml:"CreationDate"`
}

type getMemberMessagesResponse struct {
	XMLName xml.Name `xml:"GetMemberMessagesResponse"`
	tradingAck
	MemberMessage struct {
		Exchanges []memberMessageExchange `xml:"MemberMessageExchange"`
	} `xml:"MemberMessage"`
	PaginationResult struct {
		TotalNumberOfPages   int `xml:"TotalNumberOfPages"`
		TotalNumberOfEntries int `xml:"TotalNumberOfEntries"`
	} `xml:"PaginationResult"`
	HasMoreItems bool `xml:"HasMoreItems"`
}

func (m *memberMessageExchange) toMessage(itemID string) marketplace.MemberMessage {
	msg := marketplace.MemberMessage{
		Record:     marketplace.Record{ID: m.Question.MessageID, SourceAPI: marketplace.SourceLegacy},
		ItemID:     m.Item.ItemID,
		Sender:     m.Question.SenderID,
		Recipient:  m.Question.RecipientID,
		Subject:    m.Question.Subject,
		Body:       m.Question.Body,
		Status:     m.MessageStatus,
		ResponseTo: m.Question.ParentID,
	}
	if msg.ItemID == "" {
		msg.ItemID = itemID
	}
	if t, err := time.Parse(time.RFC3339, m.CreationDate); err == nil {
		msg.CreatedAt = t
	}
	return msg
}
