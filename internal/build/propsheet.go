package build

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const msbuildNamespace = "http://schemas.microsoft.com/developer/msbuild/2003"

// ArtifactsDirMacro is the user macro through which property sheets refer to the artifacts tree.
const ArtifactsDirMacro = "AsterismArtifactsDir"

// PropertySheet is an MSBuild property sheet (.props) that points a solution's projects at the
// shared artifacts tree.
type PropertySheet struct {
	configurations []Configuration
	macros         []macro
	includeDirs    map[Configuration][]string
	libraryDirs    map[Configuration][]string
	dependencies   map[Configuration][]string
}

type macro struct {
	name, value string
}

// NewPropertySheet returns an empty sheet with a conditional section for each of configurations.
func NewPropertySheet(configurations []Configuration) *PropertySheet {
	return &PropertySheet{
		configurations: configurations,
		includeDirs:    map[Configuration][]string{},
		libraryDirs:    map[Configuration][]string{},
		dependencies:   map[Configuration][]string{},
	}
}

// AddUserMacro defines $(name) as value.
func (p *PropertySheet) AddUserMacro(name, value string) {
	p.macros = append(p.macros, macro{name, value})
}

// AddIncludeDirectory appends dir to c's AdditionalIncludeDirectories.
func (p *PropertySheet) AddIncludeDirectory(c Configuration, dir string) {
	p.includeDirs[c] = append(p.includeDirs[c], dir)
}

// AddLibraryDirectory appends dir to c's AdditionalLibraryDirectories.
func (p *PropertySheet) AddLibraryDirectory(c Configuration, dir string) {
	p.libraryDirs[c] = append(p.libraryDirs[c], dir)
}

// AddDependencies appends libs to c's AdditionalDependencies.
func (p *PropertySheet) AddDependencies(c Configuration, libs ...string) {
	p.dependencies[c] = append(p.dependencies[c], libs...)
}

type xmlProject struct {
	XMLName        xml.Name             `xml:"http://schemas.microsoft.com/developer/msbuild/2003 Project"`
	ToolsVersion   string               `xml:"ToolsVersion,attr"`
	ImportGroup    xmlImportGroup       `xml:"ImportGroup"`
	PropertyGroups []xmlPropertyGroup   `xml:"PropertyGroup"`
	ItemDefs       []xmlItemDefinitions `xml:"ItemDefinitionGroup"`
	ItemGroup      xmlItemGroup         `xml:"ItemGroup"`
}

type xmlImportGroup struct {
	Label string `xml:"Label,attr"`
}

type xmlPropertyGroup struct {
	Label      string     `xml:"Label,attr,omitempty"`
	Properties []xmlValue `xml:",any"`
}

type xmlValue struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlItemDefinitions struct {
	Condition string       `xml:"Condition,attr"`
	Link      xmlLink      `xml:"Link"`
	ClCompile xmlClCompile `xml:"ClCompile"`
}

type xmlLink struct {
	AdditionalDependencies       string `xml:"AdditionalDependencies,omitempty"`
	AdditionalLibraryDirectories string `xml:"AdditionalLibraryDirectories,omitempty"`
}

type xmlClCompile struct {
	AdditionalIncludeDirectories string `xml:"AdditionalIncludeDirectories,omitempty"`
}

type xmlItemGroup struct {
	BuildMacros []xmlBuildMacro `xml:"BuildMacro"`
}

type xmlBuildMacro struct {
	Include string `xml:"Include,attr"`
	Value   string `xml:"Value"`
}

// withInherited appends the inherited value of the item metadata named name so that the sheet
// extends, rather than replaces, the project's own setting.
func withInherited(vals []string, name string) string {
	if len(vals) == 0 {
		return ""
	}
	return strings.Join(append(vals[:len(vals):len(vals)], "%("+name+")"), ";")
}

// Marshal renders the sheet as an XML document.
func (p *PropertySheet) Marshal() ([]byte, error) {
	doc := xmlProject{
		ToolsVersion: "4.0",
		ImportGroup:  xmlImportGroup{Label: "PropertySheets"},
		PropertyGroups: []xmlPropertyGroup{
			{Label: "UserMacros"},
			{},
		},
	}
	for _, m := range p.macros {
		doc.PropertyGroups[0].Properties = append(doc.PropertyGroups[0].Properties,
			xmlValue{XMLName: xml.Name{Local: m.name}, Value: m.value})
		doc.ItemGroup.BuildMacros = append(doc.ItemGroup.BuildMacros,
			xmlBuildMacro{Include: m.name, Value: "$(" + m.name + ")"})
	}
	for _, c := range p.configurations {
		doc.ItemDefs = append(doc.ItemDefs, xmlItemDefinitions{
			Condition: fmt.Sprintf("'$(Configuration)|$(Platform)'=='%s|%s'", c.Name, c.Platform),
			Link: xmlLink{
				AdditionalDependencies:       withInherited(p.dependencies[c], "AdditionalDependencies"),
				AdditionalLibraryDirectories: withInherited(p.libraryDirs[c], "AdditionalLibraryDirectories"),
			},
			ClCompile: xmlClCompile{
				AdditionalIncludeDirectories: withInherited(p.includeDirs[c], "AdditionalIncludeDirectories"),
			},
		})
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(append([]byte(xml.Header), out...), '\n'), nil
}

// Save writes the sheet to path, creating parent directories as needed.
func (p *PropertySheet) Save(path string) error {
	data, err := p.Marshal()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o666)
}

// WindowsDir formats a relative directory the way MSBuild path macros expect: backslash separated
// with a trailing backslash.
func WindowsDir(parts ...string) string {
	var segs []string
	for _, p := range parts {
		p = strings.Trim(strings.ReplaceAll(filepath.ToSlash(p), "/", `\`), `\`)
		if p != "" && p != "." {
			segs = append(segs, p)
		}
	}
	if len(segs) == 0 {
		return ""
	}
	return strings.Join(segs, `\`) + `\`
}
