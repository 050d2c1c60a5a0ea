package sandbox

import (
	"fmt"
	"path"
	"sort"
	"strings"
)

// Language is the tag of a supported project language
type Language string

// Supported languages
const (
	LanguageRust       Language = "rust"
	LanguageJava       Language = "java"
	LanguageScala      Language = "scala"
	LanguageSwift      Language = "swift"
	LanguageKotlin     Language = "kotlin"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguagePHP        Language = "php"
)

// FileRole identifies what a project file holds. Roles sort in cache-key order.
type FileRole int

// Project file roles, in the order their contents enter the cache key
const (
	RoleManifest FileRole = iota
	RoleSolution
	RoleTest
	RoleExtraConfig
)

func (r FileRole) String() string {
	switch r {
	case RoleManifest:
		return "manifest"
	case RoleSolution:
		return "solution"
	case RoleTest:
		return "test"
	case RoleExtraConfig:
		return "extra_config"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// ProjectFile is one generated file at a fixed, slash-separated path relative to the sandbox root
type ProjectFile struct {
	Role FileRole
	Path string
}

// Descriptor describes how a language is built: its image, project layout and host command suffix
type Descriptor struct {
	Language Language
	Image    string
	Files    []ProjectFile

	// WindowsSuffix is appended to the executable name when running on a Windows host.
	WindowsSuffix string
}

// ExecutableName applies the host suffix rule for goos to a command name
func (d Descriptor) ExecutableName(name, goos string) string {
	if goos == "windows" && d.WindowsSuffix != "" && !strings.HasSuffix(name, d.WindowsSuffix) {
		return name + d.WindowsSuffix
	}
	return name
}

// FilePaths returns the relative paths of the project files in key order
func (d Descriptor) FilePaths() []string {
	paths := make([]string, len(d.Files))
	for i, f := range d.Files {
		paths[i] = f.Path
	}
	return paths
}

var descriptors = []Descriptor{
	{
		Language: LanguageRust,
		Image:    "rust:latest",
		Files: []ProjectFile{
			{RoleManifest, "Cargo.toml"},
			{RoleSolution, "src/lib.rs"},
		},
	},
	{
		Language: LanguageJava,
		Image:    "maven:3-eclipse-temurin-21",
		Files: []ProjectFile{
			{RoleManifest, "pom.xml"},
			{RoleSolution, "src/main/java/com/example/solution/Solution.java"},
			{RoleTest, "src/test/java/com/example/solution/SolutionTest.java"},
		},
		WindowsSuffix: ".cmd",
	},
	{
		Language: LanguageScala,
		Image:    "sbtscala/scala-sbt:eclipse-temurin-21.0.5_11_1.10.7_3.6.2",
		Files: []ProjectFile{
			{RoleManifest, "build.sbt"},
			{RoleSolution, "src/main/scala/Solution.scala"},
			{RoleTest, "src/test/scala/SolutionTest.scala"},
		},
		WindowsSuffix: ".cmd",
	},
	{
		Language: LanguageSwift,
		Image:    "swift:latest",
		Files: []ProjectFile{
			{RoleManifest, "Package.swift"},
			{RoleSolution, "Sources/Solution/Solution.swift"},
			{RoleTest, "Tests/SolutionTests/SolutionTests.swift"},
		},
	},
	{
		Language: LanguageKotlin,
		Image:    "gradle:jdk21",
		Files: []ProjectFile{
			{RoleManifest, "build.gradle"},
			{RoleSolution, "src/main/kotlin/Solution.kt"},
			{RoleTest, "src/test/kotlin/SolutionTest.kt"},
		},
		WindowsSuffix: ".bat",
	},
	{
		Language: LanguagePython,
		Image:    "python:3.12",
		Files: []ProjectFile{
			{RoleManifest, "requirements.txt"},
			{RoleSolution, "solution.py"},
			{RoleTest, "test.py"},
		},
	},
	{
		Language: LanguageJavaScript,
		Image:    "node:20",
		Files: []ProjectFile{
			{RoleManifest, "package.json"},
			{RoleSolution, "src/solution.js"},
			{RoleTest, "src/solution.test.js"},
		},
		WindowsSuffix: ".cmd",
	},
	{
		Language: LanguageTypeScript,
		Image:    "node:20",
		Files: []ProjectFile{
			{RoleManifest, "package.json"},
			{RoleSolution, "src/solution.ts"},
			{RoleTest, "src/solution.test.ts"},
			{RoleExtraConfig, "tsconfig.json"},
		},
		WindowsSuffix: ".cmd",
	},
	{
		Language: LanguagePHP,
		Image:    "composer:2",
		Files: []ProjectFile{
			{RoleManifest, "composer.json"},
			{RoleSolution, "src/Solution.php"},
			{RoleTest, "tests/SolutionTest.php"},
		},
		WindowsSuffix: ".cmd",
	},
}

// ParseLanguage converts a user-supplied tag into a Language, case-insensitively
func ParseLanguage(s string) (Language, error) {
	tag := Language(strings.ToLower(strings.TrimSpace(s)))
	for _, d := range descriptors {
		if d.Language == tag {
			return tag, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedLanguage, s)
}

// Languages returns every supported language tag in alphabetical order
func Languages() []Language {
	tags := make([]Language, 0, len(descriptors))
	for _, d := range descriptors {
		tags = append(tags, d.Language)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Catalog is the descriptor table with configured image overrides applied
type Catalog struct {
	byLanguage map[Language]Descriptor
}

// NewCatalog builds a Catalog; images maps language tags to replacement image references
func NewCatalog(images map[string]string) (*Catalog, error) {
	c := &Catalog{byLanguage: make(map[Language]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		d.Files = append([]ProjectFile(nil), d.Files...)
		sort.SliceStable(d.Files, func(i, j int) bool { return d.Files[i].Role < d.Files[j].Role })
		c.byLanguage[d.Language] = d
	}

	for tag, img := range images {
		lang, err := ParseLanguage(tag)
		if err != nil {
			return nil, fmt.Errorf("invalid image override: %w", err)
		}
		d := c.byLanguage[lang]
		d.Image = img
		c.byLanguage[lang] = d
	}

	for _, d := range c.byLanguage {
		for _, f := range d.Files {
			if path.IsAbs(f.Path) || strings.Contains(path.Clean(f.Path), "..") {
				return nil, fmt.Errorf("descriptor %s has unsafe path %q", d.Language, f.Path)
			}
		}
	}

	return c, nil
}

// Lookup returns the descriptor for lang
func (c *Catalog) Lookup(lang Language) (Descriptor, error) {
	d, ok := c.byLanguage[lang]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}
	return d, nil
}
