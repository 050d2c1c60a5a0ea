package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected Language
		hasError bool
	}{
		{"python", LanguagePython, false},
		{"Rust", LanguageRust, false},
		{" TYPESCRIPT ", LanguageTypeScript, false},
		{"kotlin", LanguageKotlin, false},
		{"go", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lang, err := ParseLanguage(tt.input)
			if tt.hasError {
				require.ErrorIs(t, err, ErrUnsupportedLanguage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, lang)
		})
	}
}

func TestLanguages(t *testing.T) {
	langs := Languages()
	assert.Len(t, langs, 9)
	assert.Equal(t, LanguageJava, langs[0])
	assert.Equal(t, LanguageTypeScript, langs[len(langs)-1])
}

func TestCatalog(t *testing.T) {
	t.Run("EveryLanguageHasDescriptor", func(t *testing.T) {
		c, err := NewCatalog(nil)
		require.NoError(t, err)

		for _, lang := range Languages() {
			d, err := c.Lookup(lang)
			require.NoError(t, err, lang)
			assert.Equal(t, lang, d.Language)
			assert.NotEmpty(t, d.Image)
			require.NotEmpty(t, d.Files)
			assert.Equal(t, RoleManifest, d.Files[0].Role)
		}
	})

	t.Run("FilesInRoleOrder", func(t *testing.T) {
		c, err := NewCatalog(nil)
		require.NoError(t, err)

		d, err := c.Lookup(LanguageTypeScript)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"package.json",
			"src/solution.ts",
			"src/solution.test.ts",
			"tsconfig.json",
		}, d.FilePaths())

		d, err = c.Lookup(LanguageRust)
		require.NoError(t, err)
		assert.Equal(t, []string{"Cargo.toml", "src/lib.rs"}, d.FilePaths())
	})

	t.Run("ImageOverride", func(t *testing.T) {
		c, err := NewCatalog(map[string]string{"Python": "python:3.13-slim"})
		require.NoError(t, err)

		d, err := c.Lookup(LanguagePython)
		require.NoError(t, err)
		assert.Equal(t, "python:3.13-slim", d.Image)

		d, err = c.Lookup(LanguageRust)
		require.NoError(t, err)
		assert.Equal(t, "rust:latest", d.Image)
	})

	t.Run("UnknownOverride", func(t *testing.T) {
		_, err := NewCatalog(map[string]string{"cobol": "cobol:latest"})
		require.ErrorIs(t, err, ErrUnsupportedLanguage)
	})

	t.Run("UnknownLookup", func(t *testing.T) {
		c, err := NewCatalog(nil)
		require.NoError(t, err)

		_, err = c.Lookup(Language("cobol"))
		require.ErrorIs(t, err, ErrUnsupportedLanguage)
	})

	t.Run("OverrideDoesNotLeak", func(t *testing.T) {
		_, err := NewCatalog(map[string]string{"rust": "rust:1.80"})
		require.NoError(t, err)

		c, err := NewCatalog(nil)
		require.NoError(t, err)
		d, err := c.Lookup(LanguageRust)
		require.NoError(t, err)
		assert.Equal(t, "rust:latest", d.Image)
	})
}

func TestExecutableName(t *testing.T) {
	c, err := NewCatalog(nil)
	require.NoError(t, err)

	tests := []struct {
		lang     Language
		command  string
		goos     string
		expected string
	}{
		{LanguageJava, "mvn", "windows", "mvn.cmd"},
		{LanguageScala, "sbt", "windows", "sbt.cmd"},
		{LanguageJavaScript, "npm", "windows", "npm.cmd"},
		{LanguageTypeScript, "npx", "windows", "npx.cmd"},
		{LanguagePHP, "composer", "windows", "composer.cmd"},
		{LanguageKotlin, "gradle", "windows", "gradle.bat"},
		{LanguageKotlin, "gradle.bat", "windows", "gradle.bat"},
		{LanguagePython, "pytest", "windows", "pytest"},
		{LanguageRust, "cargo", "windows", "cargo"},
		{LanguageJava, "mvn", "linux", "mvn"},
		{LanguageKotlin, "gradle", "darwin", "gradle"},
	}

	for _, tt := range tests {
		t.Run(string(tt.lang)+"_"+tt.goos, func(t *testing.T) {
			d, err := c.Lookup(tt.lang)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.ExecutableName(tt.command, tt.goos))
		})
	}
}

func TestFileRoleString(t *testing.T) {
	assert.Equal(t, "manifest", RoleManifest.String())
	assert.Equal(t, "extra_config", RoleExtraConfig.String())
	assert.Equal(t, "role(9)", FileRole(9).String())
}
