package adwords

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"searchreporting/pkg/errors"
)

// ManagedCustomer is one account visible from the requesting customer.
type ManagedCustomer struct {
	CustomerID int64  `xml:"customerId"`
	Name       string `xml:"name"`
}

// ManagedCustomerLink ties a manager account to one of its direct children.
type ManagedCustomerLink struct {
	ManagerCustomerID int64 `xml:"managerCustomerId"`
	ClientCustomerID  int64 `xml:"clientCustomerId"`
}

// ManagedCustomerPage is one page of ManagedCustomerService.get.
type ManagedCustomerPage struct {
	TotalNumEntries int                   `xml:"totalNumEntries"`
	Entries         []ManagedCustomer     `xml:"entries"`
	Links           []ManagedCustomerLink `xml:"links"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

type soapEnvelope struct {
	Body struct {
		Fault       *soapFault `xml:"Fault"`
		GetResponse *struct {
			Rval ManagedCustomerPage `xml:"rval"`
		} `xml:"getResponse"`
	} `xml:"Body"`
}

// ManagedCustomers fetches one page of the account hierarchy under
// customerID, selecting CustomerId and Name.
func (c *Client) ManagedCustomers(ctx context.Context, customerID string, startIndex, pageSize int) (*ManagedCustomerPage, error) {
	customerID = NormalizeCustomerID(customerID)
	envelope := c.managedCustomerEnvelope(customerID, startIndex, pageSize)

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/xml; charset=utf-8").
		SetHeader("SOAPAction", `""`).
		SetBody(envelope).
		Post(fmt.Sprintf("/api/adwords/mcm/%s/ManagedCustomerService", c.version))

	if err := classify(resp, err, errors.ErrCodeHierarchyFailed, errors.ErrCodeHierarchyFailed, "Failed to list managed customers"); err != nil {
		return nil, withCustomer(err, customerID)
	}

	var parsed soapEnvelope
	if err := xml.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeResultParsing, "Malformed ManagedCustomerService response").
			WithContext("customer_id", customerID)
	}
	if parsed.Body.Fault != nil {
		return nil, errors.New(errors.ErrCodeHierarchyFailed, parsed.Body.Fault.FaultString).
			WithContext("customer_id", customerID)
	}
	if parsed.Body.GetResponse == nil {
		return nil, errors.New(errors.ErrCodeResultParsing, "ManagedCustomerService response has no result").
			WithContext("customer_id", customerID)
	}

	page := parsed.Body.GetResponse.Rval
	c.logger.DebugWithFields("Fetched managed customer page", map[string]interface{}{
		"customer_id": customerID,
		"start_index": startIndex,
		"entries":     len(page.Entries),
		"links":       len(page.Links),
		"total":       page.TotalNumEntries,
	})
	return &page, nil
}

func (c *Client) managedCustomerEnvelope(customerID string, startIndex, pageSize int) string {
	cm := "https://adwords.google.com/api/adwords/cm/" + c.version
	mcm := "https://adwords.google.com/api/adwords/mcm/" + c.version

	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/"`)
	fmt.Fprintf(&b, ` xmlns="%s" xmlns:cm="%s">`, mcm, cm)
	b.WriteString(`<soapenv:Header><RequestHeader>`)
	writeElement(&b, "cm:clientCustomerId", customerID)
	writeElement(&b, "cm:developerToken", c.config.DeveloperToken)
	writeElement(&b, "cm:userAgent", c.config.UserAgent)
	b.WriteString(`</RequestHeader></soapenv:Header>`)
	b.WriteString(`<soapenv:Body><get><serviceSelector>`)
	writeElement(&b, "cm:fields", "CustomerId")
	writeElement(&b, "cm:fields", "Name")
	b.WriteString(`<cm:paging>`)
	writeElement(&b, "cm:startIndex", fmt.Sprint(startIndex))
	writeElement(&b, "cm:numberResults", fmt.Sprint(pageSize))
	b.WriteString(`</cm:paging></serviceSelector></get></soapenv:Body></soapenv:Envelope>`)
	return b.String()
}

func writeElement(b *strings.Builder, name, value string) {
	b.WriteString("<" + name + ">")
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString("</" + name + ">")
}

func withCustomer(err error, customerID string) error {
	if appErr, ok := err.(*errors.AppError); ok {
		return appErr.WithContext("customer_id", customerID)
	}
	return err
}
