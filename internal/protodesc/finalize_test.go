package protodesc

import "testing"

func TestFinalizeRequiresCoreNamespace(t *testing.T) {
	m := NewModel()
	m.Namespace("shape")

	_, err := Finalize(m)
	if err == nil {
		t.Fatal("expected error for missing core namespace")
	}
}

func TestFinalizeIndexesRequestsByOpcode(t *testing.T) {
	m := NewModel()
	core := m.Namespace("core")
	core.Requests = []*Request{
		{Opcode: 1, Name: "CreateWindow"},
		{Opcode: 98, Name: "QueryExtension", Special: "QueryExtension"},
	}

	tables, err := Finalize(m)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if tables.Core.Requests[1].Name != "CreateWindow" {
		t.Fatalf("opcode 1 = %+v", tables.Core.Requests[1])
	}
	if tables.Core.Requests[98].Name != "QueryExtension" {
		t.Fatalf("opcode 98 = %+v", tables.Core.Requests[98])
	}
	if tables.Core.Requests[1].Params != emptyParamList {
		t.Fatalf("expected shared empty param list sentinel")
	}
}

func TestFinalizeRejectsZeroValuedBitmaskMember(t *testing.T) {
	m := NewModel()
	core := m.Namespace("core")
	core.Constants["ValueMask"] = &ConstantSet{
		Name:      "ValueMask",
		IsBitmask: true,
		Members:   []Constant{{Value: 0, Name: "None"}},
	}

	_, err := Finalize(m)
	if err == nil {
		t.Fatal("expected error for zero-valued bitmask member")
	}
}

func TestFinalizeRejectsSubsetBitmaskMembers(t *testing.T) {
	m := NewModel()
	core := m.Namespace("core")
	core.Constants["Mask"] = &ConstantSet{
		Name:      "Mask",
		IsBitmask: true,
		Members: []Constant{
			{Value: 0x3, Name: "Both"},
			{Value: 0x1, Name: "First"},
		},
	}

	_, err := Finalize(m)
	if err == nil {
		t.Fatal("expected error for subset bitmask member")
	}
}
