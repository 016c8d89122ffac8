// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 terraplug Contributors

//go:build integration

package plugin_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	plugins "github.com/terraplug/terraplug/internal/plugin"
	pluginpkg "github.com/terraplug/terraplug/pkg/plugin"
)

const okScript = `
function startup() end
function shutdown() end
`

var _ = Describe("Plugin lifecycle", func() {
	var env *testEnv

	BeforeEach(func() {
		env = newTestEnv()
	})

	AfterEach(func() {
		Expect(env.sys.UnloadAll(env.ctx)).To(Succeed())
	})

	Describe("LoadAll", func() {
		It("loads plugins after their dependencies", func() {
			env.writePlugin("ui", okScript, []string{"net", "core"})
			env.writePlugin("net", okScript, []string{"core"})
			env.writePlugin("core", okScript, nil)

			Expect(env.sys.LoadAll(env.ctx, true)).To(Succeed())

			Expect(env.sys.Manager.LoadedPlugins()).To(Equal([]string{"core", "net", "ui"}))
			Expect(env.sys.Manager.Dependents("core")).To(ConsistOf("net", "ui"))
			for _, s := range env.sys.Manager.Snapshot() {
				Expect(s.State).To(Equal(plugins.StateLoaded))
				Expect(s.Started).To(BeTrue())
			}
		})

		It("loads without starting when asked", func() {
			env.writePlugin("core", okScript, nil)

			Expect(env.sys.LoadAll(env.ctx, false)).To(Succeed())

			p, err := env.sys.Manager.Get("core")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Initialized()).To(BeFalse())

			Expect(env.sys.Manager.Start(env.ctx, "core")).To(Succeed())
			Expect(p.Initialized()).To(BeTrue())
		})

		It("rejects dependency cycles before loading anything", func() {
			env.writePlugin("a", okScript, []string{"b"})
			env.writePlugin("b", okScript, []string{"a"})

			err := env.sys.LoadAll(env.ctx, true)
			Expect(err).To(HaveOccurred())
			Expect(pluginpkg.HasCode(err, pluginpkg.CodeCyclicDependency)).To(BeTrue())
			Expect(env.sys.Manager.LoadedPlugins()).To(BeEmpty())
		})

		It("marks a plugin with a missing dependency broken", func() {
			env.writePlugin("net", okScript, []string{"core"})

			err := env.sys.LoadAll(env.ctx, true)
			Expect(err).To(HaveOccurred())
			Expect(pluginpkg.HasCode(err, pluginpkg.CodePluginLoad)).To(BeTrue())
			Expect(env.sys.Manager.IsBroken("net")).To(BeTrue())
		})

		It("keeps earlier plugins loaded when a startup fails", func() {
			env.writePlugin("core", okScript, nil)
			env.writePlugin("net", `function startup() return false, "no route" end`, []string{"core"})

			err := env.sys.LoadAll(env.ctx, true)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("no route"))
			Expect(pluginpkg.HasCode(err, pluginpkg.CodePluginStartup)).To(BeTrue())

			Expect(env.sys.Manager.IsLoaded("core")).To(BeTrue())
			Expect(env.sys.Manager.IsBroken("net")).To(BeTrue())
			Expect(env.sys.Manager.Dependents("core")).To(BeEmpty())
		})

		It("reloads from a clean manager", func() {
			env.writePlugin("core", okScript, nil)
			Expect(env.sys.LoadAll(env.ctx, true)).To(Succeed())

			env.writePlugin("net", okScript, []string{"core"})
			Expect(env.sys.LoadAll(env.ctx, true)).To(Succeed())
			Expect(env.sys.Manager.LoadedPlugins()).To(Equal([]string{"core", "net"}))
		})
	})

	Describe("Stop", func() {
		It("stops dependents before their dependencies", func() {
			env.writePlugin("core", okScript, nil)
			env.writePlugin("net", okScript, []string{"core"})
			Expect(env.sys.LoadAll(env.ctx, true)).To(Succeed())

			err := env.sys.Manager.Stop(env.ctx, "core")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("required by: net"))

			Expect(env.sys.Manager.Stop(env.ctx, "net")).To(Succeed())
			Expect(env.sys.Manager.Stop(env.ctx, "core")).To(Succeed())

			// net still depends on core, so it cannot start on its own.
			Expect(env.sys.Manager.Start(env.ctx, "net")).NotTo(Succeed())
			Expect(env.sys.Manager.Start(env.ctx, "core")).To(Succeed())
			Expect(env.sys.Manager.Start(env.ctx, "net")).To(Succeed())
		})
	})

	Describe("UnloadPlugin", func() {
		It("unloads dependents first", func() {
			env.writePlugin("core", okScript, nil)
			env.writePlugin("net", okScript, []string{"core"})
			env.writePlugin("ui", okScript, []string{"net"})
			env.writePlugin("tools", okScript, nil)
			Expect(env.sys.LoadAll(env.ctx, true)).To(Succeed())

			Expect(env.sys.UnloadPlugin(env.ctx, "core")).To(Succeed())

			Expect(env.sys.Manager.LoadedPlugins()).To(Equal([]string{"tools"}))
			for _, name := range []string{"core", "net", "ui"} {
				Expect(env.sys.Manager.IsUnloaded(name)).To(BeTrue(), name)
			}
		})

		It("refuses to unload a plugin with loaded dependents directly", func() {
			env.writePlugin("core", okScript, nil)
			env.writePlugin("net", okScript, []string{"core"})
			Expect(env.sys.LoadAll(env.ctx, false)).To(Succeed())

			err := env.sys.Manager.Unload(env.ctx, "core")
			Expect(err).To(HaveOccurred())
			Expect(env.sys.Manager.IsLoaded("core")).To(BeTrue())
		})
	})

	Describe("capabilities", func() {
		const readScript = `
function startup()
  local data, err = terraplug.read_file("data.txt")
  if data == nil then
    return false, err
  end
  if data ~= "hello" then
    return false, "unexpected content"
  end
end
`

		It("allows granted host functions", func() {
			env.writePlugin("reader", readScript, nil, "  capabilities: fs.read")
			Expect(os.WriteFile(filepath.Join(env.root, "reader", "data.txt"), []byte("hello"), 0o600)).To(Succeed())

			Expect(env.sys.LoadAll(env.ctx, true)).To(Succeed())
			Expect(env.enforcer.GetGrants("reader")).To(Equal([]string{"fs.read"}))
		})

		It("denies host functions without a grant", func() {
			env.writePlugin("reader", readScript, nil)
			Expect(os.WriteFile(filepath.Join(env.root, "reader", "data.txt"), []byte("hello"), 0o600)).To(Succeed())

			err := env.sys.LoadAll(env.ctx, true)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("capability denied"))
			Expect(env.sys.Manager.IsBroken("reader")).To(BeTrue())
			Expect(env.enforcer.GetGrants("reader")).To(BeNil())
		})
	})
})
