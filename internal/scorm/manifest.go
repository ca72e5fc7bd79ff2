package scorm

import (
	"encoding/xml"
	"fmt"
)

// SCORM 1.2 manifest constants.
const (
	schemaVersion = "1.2"
	defaultOrg    = "default-org"
	masteryScore  = 80
)

type manifestXML struct {
	XMLName        xml.Name `xml:"manifest"`
	Identifier     string   `xml:"identifier,attr"`
	Version        string   `xml:"version,attr"`
	Xmlns          string   `xml:"xmlns,attr"`
	XmlnsADLCP     string   `xml:"xmlns:adlcp,attr"`
	XmlnsXSI       string   `xml:"xmlns:xsi,attr"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`

	Metadata      metadataXML      `xml:"metadata"`
	Organizations organizationsXML `xml:"organizations"`
	Resources     resourcesXML     `xml:"resources"`
}

type metadataXML struct {
	Schema        string `xml:"schema"`
	SchemaVersion string `xml:"schemaversion"`
}

type organizationsXML struct {
	Default      string          `xml:"default,attr"`
	Organization organizationXML `xml:"organization"`
}

type organizationXML struct {
	Identifier string  `xml:"identifier,attr"`
	Title      string  `xml:"title"`
	Item       itemXML `xml:"item"`
}

type itemXML struct {
	Identifier    string `xml:"identifier,attr"`
	IdentifierRef string `xml:"identifierref,attr"`
	IsVisible     string `xml:"isvisible,attr"`
	Title         string `xml:"title"`
	MasteryScore  int    `xml:"adlcp:masteryscore"`
}

type resourcesXML struct {
	Resource resourceXML `xml:"resource"`
}

type resourceXML struct {
	Identifier string    `xml:"identifier,attr"`
	Type       string    `xml:"type,attr"`
	SCORMType  string    `xml:"adlcp:scormtype,attr"`
	Href       string    `xml:"href,attr"`
	Files      []fileXML `xml:"file"`
}

type fileXML struct {
	Href string `xml:"href,attr"`
}

// packageFiles lists every content file referenced by the manifest resource.
var packageFiles = []string{"index.html", "style.css", "scorm_api.js"}

// generateManifest renders the SCORM 1.2 imsmanifest.xml for a single-SCO
// package. The whole course ships as one trackable resource; the manifest
// identifier derives from the course title.
func generateManifest(title string) ([]byte, error) {
	files := make([]fileXML, len(packageFiles))
	for i, name := range packageFiles {
		files[i] = fileXML{Href: name}
	}

	m := manifestXML{
		Identifier: Slugify(title),
		Version:    "1.0",
		Xmlns:      "http://www.imsproject.org/xsd/imscp_rootv1p1p2",
		XmlnsADLCP: "http://www.adlnet.org/xsd/adlcp_rootv1p2",
		XmlnsXSI:   "http://www.w3.org/2001/XMLSchema-instance",
		SchemaLocation: "http://www.imsproject.org/xsd/imscp_rootv1p1p2 imscp_rootv1p1p2.xsd " +
			"http://www.adlnet.org/xsd/adlcp_rootv1p2 adlcp_rootv1p2.xsd",
		Metadata: metadataXML{
			Schema:        "ADL SCORM",
			SchemaVersion: schemaVersion,
		},
		Organizations: organizationsXML{
			Default: defaultOrg,
			Organization: organizationXML{
				Identifier: defaultOrg,
				Title:      title,
				Item: itemXML{
					Identifier:    "item-1",
					IdentifierRef: "resource-1",
					IsVisible:     "true",
					Title:         title,
					MasteryScore:  masteryScore,
				},
			},
		},
		Resources: resourcesXML{
			Resource: resourceXML{
				Identifier: "resource-1",
				Type:       "webcontent",
				SCORMType:  "sco",
				Href:       "index.html",
				Files:      files,
			},
		},
	}

	body, err := xml.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}

	return append([]byte(xml.Header), body...), nil
}
