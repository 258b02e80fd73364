package service

import (
	"encoding/xml"
	"fmt"
)

const externalQuestionSchema = "http://mechanicalturk.amazonaws.com/AWSMechanicalTurkDataSchemas/2006-07-14/ExternalQuestion.xsd"

type externalQuestion struct {
	XMLName     xml.Name `xml:"ExternalQuestion"`
	Namespace   string   `xml:"xmlns,attr"`
	ExternalURL string   `xml:"ExternalURL"`
	FrameHeight int      `xml:"FrameHeight"`
}

// ExternalQuestion renders the question document that frames url inside the worker site
func ExternalQuestion(url string, frameHeight int) (string, error) {
	data, err := xml.MarshalIndent(externalQuestion{
		Namespace:   externalQuestionSchema,
		ExternalURL: url,
		FrameHeight: frameHeight,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render question: %w", err)
	}
	return string(data), nil
}
