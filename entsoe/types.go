package entsoe

import "encoding/xml"

type document struct {
	XMLName    xml.Name
	TimeSeries []timeSeries `xml:"TimeSeries"`
	Reasons    []reason     `xml:"Reason"`
}

type timeSeries struct {
	CurveType string   `xml:"curveType"`
	Periods   []period `xml:"Period"`
}

type period struct {
	TimeInterval struct {
		Start string `xml:"start"`
		End   string `xml:"end"`
	} `xml:"timeInterval"`
	Resolution string  `xml:"resolution"`
	Points     []point `xml:"Point"`
}

type point struct {
	Position int     `xml:"position"`
	Price    float64 `xml:"price.amount"`
}

type reason struct {
	Code string `xml:"code"`
	Text string `xml:"text"`
}

// rawPoint is the audit snapshot stored with each record.
type rawPoint struct {
	Position   int     `json:"position"`
	Price      float64 `json:"price_amount"`
	Resolution string  `json:"resolution"`
	Unit       string  `json:"unit"`
}
